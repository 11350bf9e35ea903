package normalize

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tablesync/internal/table"
)

// RawFile is one incremental extract as read from disk: a header row and
// untyped records. Cells may be strings, numbers, time.Time, nil or
// table values.
type RawFile struct {
	Source  string
	Header  []string
	Records [][]any
}

// DroppedRow is a record removed during normalization because a key
// column held a value that could not be typed.
type DroppedRow struct {
	Source string
	Row    int
	Err    *RowError
}

// File is the normalized form of a RawFile.
type File struct {
	Index    int
	Source   string
	Rows     []table.Row
	Lines    []int // 1-based data row of each entry in Rows
	Original int   // non-blank records read
	Dropped  []DroppedRow
	Filtered int
	// Coerced counts, per column, non-blank cells that could not be typed
	// and were stored as Null.
	Coerced map[string]int
	// Missing lists schema columns absent from the header; they are Null.
	Missing []string
}

// Options tunes a Normalizer.
type Options struct {
	DateFormats []string
	Exclude     map[string][]string
	Workers     int
	Logger      *zap.Logger
}

// Normalizer turns raw extracts into typed rows for one table.
type Normalizer struct {
	schema   *table.Schema
	key      *table.KeySpec
	formats  []string
	exclude  *Exclusions
	workers  int
	logger   *zap.Logger
	required []string
}

// New builds a Normalizer. recency names the date column used for
// conflict resolution.
func New(schema *table.Schema, key *table.KeySpec, recency string, opts Options) (*Normalizer, error) {
	pos, ok := schema.Index(recency)
	if !ok {
		return nil, fmt.Errorf("recency column %q not in schema", recency)
	}
	if schema.Column(pos).Type != table.TypeDate {
		return nil, fmt.Errorf("recency column %q must be a date, got %s", recency, schema.Column(pos).Type)
	}
	ex, err := NewExclusions(schema, opts.Exclude)
	if err != nil {
		return nil, err
	}
	n := &Normalizer{
		schema:  schema,
		key:     key,
		formats: opts.DateFormats,
		exclude: ex,
		workers: opts.Workers,
		logger:  opts.Logger,
	}
	if len(n.formats) == 0 {
		n.formats = DefaultDateFormats
	}
	if n.workers <= 0 {
		n.workers = runtime.GOMAXPROCS(0)
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	n.required = append(key.Columns(), recency)
	return n, nil
}

// Exclusions returns the bound exclusion rules.
func (n *Normalizer) Exclusions() *Exclusions { return n.exclude }

// Normalize processes files concurrently. Results keep the input order.
// A HeaderError in any file fails the whole call.
func (n *Normalizer) Normalize(ctx context.Context, files []RawFile) ([]File, error) {
	out := make([]File, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := n.NormalizeFile(i, files[i])
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeFile normalizes a single file.
func (n *Normalizer) NormalizeFile(index int, raw RawFile) (File, error) {
	cols, missing, err := n.bindHeader(raw)
	if err != nil {
		return File{}, err
	}

	f := File{
		Index:   index,
		Source:  raw.Source,
		Rows:    make([]table.Row, 0, len(raw.Records)),
		Lines:   make([]int, 0, len(raw.Records)),
		Coerced: map[string]int{},
		Missing: missing,
	}
	if len(missing) > 0 {
		n.logger.Warn("columns missing from extract",
			zap.String("source", raw.Source),
			zap.Strings("columns", missing))
	}

	for i, rec := range raw.Records {
		line := i + 1
		if blankRecord(rec) {
			continue
		}
		f.Original++

		r, rowErr := n.typeRow(raw.Source, line, rec, cols, f.Coerced)
		if rowErr != nil {
			f.Dropped = append(f.Dropped, DroppedRow{Source: raw.Source, Row: line, Err: rowErr})
			continue
		}
		if _, excluded := n.exclude.Match(r); excluded {
			f.Filtered++
			continue
		}
		f.Rows = append(f.Rows, r)
		f.Lines = append(f.Lines, line)
	}

	n.logger.Debug("normalized extract",
		zap.String("source", raw.Source),
		zap.Int("rows", len(f.Rows)),
		zap.Int("dropped", len(f.Dropped)),
		zap.Int("filtered", f.Filtered))
	return f, nil
}

// bindHeader maps each schema column to its position in the record, or -1.
func (n *Normalizer) bindHeader(raw RawFile) ([]int, []string, error) {
	pos := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		name := headerName(h)
		if _, dup := pos[name]; dup {
			n.logger.Warn("duplicate header column, keeping the first",
				zap.String("source", raw.Source), zap.String("column", name))
			continue
		}
		pos[name] = i
	}

	var absent []string
	for _, name := range n.required {
		if _, ok := pos[name]; !ok {
			absent = append(absent, name)
		}
	}
	if len(absent) > 0 {
		return nil, nil, &HeaderError{Source: raw.Source, Missing: absent}
	}

	cols := make([]int, n.schema.Len())
	var missing []string
	for c := range cols {
		name := n.schema.Column(c).Name
		p, ok := pos[name]
		if !ok {
			cols[c] = -1
			missing = append(missing, name)
			continue
		}
		cols[c] = p
	}
	return cols, missing, nil
}

func (n *Normalizer) typeRow(source string, line int, rec []any, cols []int, coerced map[string]int) (table.Row, *RowError) {
	r := make(table.Row, n.schema.Len())
	for c, p := range cols {
		var raw any
		if p >= 0 && p < len(rec) {
			raw = rec[p]
		}
		col := n.schema.Column(c)
		v, err := coerce(raw, col.Type, n.formats)
		if err != nil {
			if n.key.Contains(c) {
				text, _ := cellText(raw)
				return nil, &RowError{Source: source, Row: line, Column: col.Name, Value: text, Err: err}
			}
			if errors.Is(err, errUnparseable) {
				coerced[col.Name]++
			}
		}
		r[c] = v
	}
	return r, nil
}

func blankRecord(rec []any) bool {
	for _, cell := range rec {
		text, ok := cellText(cell)
		if ok && strings.TrimSpace(text) != "" {
			return false
		}
	}
	return true
}

func headerName(s string) string {
	s, _ = cleanString(s)
	return s
}
