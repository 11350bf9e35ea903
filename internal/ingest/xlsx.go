package ingest

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/tablesync/internal/normalize"
)

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(path string) (normalize.RawFile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return normalize.RawFile{}, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return normalize.RawFile{}, fmt.Errorf("%w: %s has no sheets", ErrNoHeader, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return normalize.RawFile{}, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	return rawFile(path, rows)
}
