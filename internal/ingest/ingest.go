package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/tablesync/internal/normalize"
)

// ErrUnsupported is returned for file extensions ingest cannot read.
var ErrUnsupported = errors.New("ingest: unsupported file type")

// ErrNoHeader is returned when a file holds no non-blank row.
var ErrNoHeader = errors.New("ingest: no header row")

// ReadFile reads one extract, choosing the reader by extension.
func ReadFile(path string) (normalize.RawFile, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	case ".csv":
		return ReadCSV(path)
	default:
		return normalize.RawFile{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// ReadFiles reads extracts in the given order. The order is the batch
// order, so callers pass files oldest first.
func ReadFiles(ctx context.Context, paths []string) ([]normalize.RawFile, error) {
	out := make([]normalize.RawFile, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// LoadAllowList reads the values of column from an xlsx or CSV file.
// Blank cells are skipped; the caller decides how values are matched.
func LoadAllowList(path, column string) ([]string, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	col := -1
	for i, h := range f.Header {
		if strings.EqualFold(h, strings.TrimSpace(column)) {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("ingest: allow-list %s has no column %q", path, column)
	}

	var out []string
	for _, rec := range f.Records {
		if col >= len(rec) {
			continue
		}
		s, _ := rec[col].(string)
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// rawFile turns text rows into a RawFile. Leading blank rows are
// skipped, the next row is the header, and blank cells become nil.
func rawFile(source string, rows [][]string) (normalize.RawFile, error) {
	start := 0
	for start < len(rows) && blank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return normalize.RawFile{}, fmt.Errorf("%w: %s", ErrNoHeader, source)
	}

	header := make([]string, len(rows[start]))
	for i, h := range rows[start] {
		header[i] = strings.TrimSpace(h)
	}

	f := normalize.RawFile{Source: source, Header: header}
	for _, row := range rows[start+1:] {
		rec := make([]any, len(header))
		for i := 0; i < len(row) && i < len(header); i++ {
			if row[i] != "" {
				rec[i] = row[i]
			}
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
