package baseline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/roach88/tablesync/internal/table"
)

// ErrNotFound is returned by Load when no baseline file exists yet.
var ErrNotFound = errors.New("baseline not found")

// batchRows is how many rows go into one Arrow record while writing.
const batchRows = 64 * 1024

// Info describes a stored baseline without loading it.
type Info struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	Rows    int64     `json:"rows"`
	Columns int       `json:"columns"`
}

// Save writes t to path as Parquet. The file is written to a temporary
// sibling, synced and renamed over path, so readers see either the old
// or the new baseline and never a partial one.
func Save(ctx context.Context, path string, t *table.Table) error {
	st, err := Stage(ctx, path, t)
	if err != nil {
		return err
	}
	return st.Publish()
}

// Staged is a baseline written next to its destination but not yet in
// place. Exactly one of Publish or Discard should follow Stage.
type Staged struct {
	path string
	tmp  string
}

// Stage writes t to a synced temporary sibling of path. The file at path
// is not touched until Publish.
func Stage(ctx context.Context, path string, t *table.Table) (_ *Staged, err error) {
	schema, err := ArrowSchema(t.Schema(), t.KeySpec())
	if err != nil {
		return nil, fmt.Errorf("stage baseline: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stage baseline: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("stage baseline: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(ctx, struct{ io.Writer }{tmp}, schema, t); err != nil {
		return nil, fmt.Errorf("stage baseline: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("stage baseline: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage baseline: close: %w", err)
	}
	return &Staged{path: path, tmp: tmp.Name()}, nil
}

// TempPath is the staged file.
func (s *Staged) TempPath() string { return s.tmp }

// Publish renames the staged file over the destination.
func (s *Staged) Publish() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("publish baseline: %w", err)
	}
	return nil
}

// Discard removes the staged file and leaves the destination as it was.
func (s *Staged) Discard() error {
	if err := os.Remove(s.tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard baseline: %w", err)
	}
	return nil
}

// write streams t as Parquet into w. w is wrapped so the Parquet writer
// cannot close the underlying file.
func write(ctx context.Context, w io.Writer, schema *arrow.Schema, t *table.Table) error {
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}

	rb := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer rb.Release()

	flush := func() error {
		rec := rb.NewRecord()
		defer rec.Release()
		if rec.NumRows() == 0 {
			return nil
		}
		return fw.Write(rec)
	}

	n := 0
	for _, row := range t.All() {
		for c, v := range row {
			if err := appendValue(rb.Field(c), v); err != nil {
				fw.Close()
				return fmt.Errorf("column %q: %w", t.Schema().Column(c).Name, err)
			}
		}
		n++
		if n%batchRows == 0 {
			if err := ctx.Err(); err != nil {
				fw.Close()
				return err
			}
			if err := flush(); err != nil {
				fw.Close()
				return fmt.Errorf("write rows: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		fw.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Load reads the baseline at path and checks it against the table
// definition: every column must be present with a matching type. Columns
// in the file that the schema does not name are an error. A missing file
// returns an error wrapping ErrNotFound.
func Load(ctx context.Context, path string, s *table.Schema, key *table.KeySpec) (*table.Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load baseline %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	defer f.Close()

	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{Parallel: true, BatchSize: batchRows}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", path, err)
	}
	defer tbl.Release()

	cols, err := bindColumns(tbl.Schema(), s)
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", path, err)
	}

	rows := make([]table.Row, tbl.NumRows())
	for i := range rows {
		rows[i] = make(table.Row, s.Len())
	}
	for c, fc := range cols {
		typ := s.Column(c).Type
		base := 0
		for _, chunk := range tbl.Column(fc).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				v, err := readValue(chunk, i, typ)
				if err != nil {
					return nil, fmt.Errorf("load baseline %s: column %q row %d: %w", path, s.Column(c).Name, base+i+1, err)
				}
				rows[base+i][c] = v
			}
			base += chunk.Len()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	t, err := table.New(s, key, rows)
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", path, err)
	}
	return t, nil
}

// bindColumns maps each schema column to its position in the file.
func bindColumns(fileSchema *arrow.Schema, s *table.Schema) ([]int, error) {
	if got, want := fileSchema.NumFields(), s.Len(); got != want {
		return nil, fmt.Errorf("file has %d columns, table has %d", got, want)
	}
	cols := make([]int, s.Len())
	for c, col := range s.Columns() {
		idx := fileSchema.FieldIndices(col.Name)
		if len(idx) != 1 {
			return nil, fmt.Errorf("column %q missing from file", col.Name)
		}
		want, err := arrowType(col.Type)
		if err != nil {
			return nil, err
		}
		if got := fileSchema.Field(idx[0]).Type; !arrow.TypeEqual(got, want) {
			return nil, fmt.Errorf("column %q has type %s, want %s", col.Name, got, want)
		}
		cols[c] = idx[0]
	}
	return cols, nil
}

// Stat describes the baseline at path from its Parquet footer. A missing
// file returns an error wrapping ErrNotFound.
func Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, fmt.Errorf("stat baseline %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Info{}, fmt.Errorf("stat baseline: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("stat baseline: %w", err)
	}
	defer f.Close()

	rdr, err := file.NewParquetReader(f)
	if err != nil {
		return Info{}, fmt.Errorf("stat baseline %s: %w", path, err)
	}
	defer rdr.Close()

	return Info{
		Path:    path,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
		Rows:    rdr.NumRows(),
		Columns: rdr.MetaData().Schema.NumColumns(),
	}, nil
}
