package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/roach88/tablesync/internal/normalize"
)

// ReadCSV reads a comma-separated extract. A UTF-8 byte order mark is
// stripped and rows may have differing lengths.
func ReadCSV(path string) (normalize.RawFile, error) {
	fh, err := os.Open(path)
	if err != nil {
		return normalize.RawFile{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows, err := r.ReadAll()
	if err != nil {
		return normalize.RawFile{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rawFile(path, rows)
}
