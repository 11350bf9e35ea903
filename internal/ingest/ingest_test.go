package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeXLSX(t *testing.T, name string, rows ...[]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeXLSX(t, "inc_2025-11-10.xlsx",
		[]any{" PMM Item Number ", "Corp Acct", "Item Update Date", "Price"},
		[]any{"1001", "10-200", "2025-11-10", "10.50"},
		[]any{"1002", nil, "2025-11-11", "3"},
	)

	f, err := ReadXLSX(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Source)
	assert.Equal(t, []string{"PMM Item Number", "Corp Acct", "Item Update Date", "Price"}, f.Header)
	require.Len(t, f.Records, 2)
	assert.Equal(t, []any{"1001", "10-200", "2025-11-10", "10.50"}, f.Records[0])
	assert.Nil(t, f.Records[1][1], "blank cell reads as nil")
}

func TestReadXLSXShortRows(t *testing.T) {
	path := writeXLSX(t, "short.xlsx",
		[]any{"a", "b", "c"},
		[]any{"1"},
	)

	f, err := ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, f.Records, 1)
	assert.Equal(t, []any{"1", nil, nil}, f.Records[0])
}

func TestReadXLSXEmpty(t *testing.T) {
	path := writeXLSX(t, "empty.xlsx")

	_, err := ReadXLSX(path)
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestReadCSV(t *testing.T) {
	path := writeCSV(t, "inc.csv", "\ufeffid,name,price\n1,\"Widget, large\",\"1,200.00\"\n2,,5\n")

	f, err := ReadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "price"}, f.Header)
	require.Len(t, f.Records, 2)
	assert.Equal(t, []any{"1", "Widget, large", "1,200.00"}, f.Records[0])
	assert.Equal(t, []any{"2", nil, "5"}, f.Records[1])
}

func TestReadCSVLeadingBlankRows(t *testing.T) {
	path := writeCSV(t, "inc.csv", ",,\nid,name\n1,a\n")

	f, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, f.Header)
	assert.Len(t, f.Records, 1)
}

func TestReadFile(t *testing.T) {
	csvPath := writeCSV(t, "a.CSV", "id\n1\n")
	f, err := ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, f.Header)

	_, err = ReadFile(writeCSV(t, "a.json", "{}"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestReadFilesKeepsOrder(t *testing.T) {
	a := writeCSV(t, "a.csv", "id\n1\n")
	b := writeXLSX(t, "b.xlsx", []any{"id"}, []any{"2"})

	files, err := ReadFiles(context.Background(), []string{b, a})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, b, files[0].Source)
	assert.Equal(t, a, files[1].Source)
}

func TestReadFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadFiles(ctx, []string{"x.csv"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadAllowList(t *testing.T) {
	path := writeXLSX(t, "allow.xlsx",
		[]any{"Note", "PMM Item Number"},
		[]any{"x", "1001"},
		[]any{"y", " 1002 "},
		[]any{"z", nil},
	)

	got, err := LoadAllowList(path, "pmm item number")
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002"}, got)

	_, err = LoadAllowList(path, "Missing")
	assert.Error(t, err)
}
