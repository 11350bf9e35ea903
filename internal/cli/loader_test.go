package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/compiler"
)

func TestLoadTablesDirectory(t *testing.T) {
	result, errs := LoadTables(filepath.Join("testdata", "tables"), LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Tables, 2)
	assert.Equal(t, "price", result.Tables[0].Name, "tables are sorted by name")
	assert.Equal(t, "vendor", result.Tables[1].Name)
	assert.Equal(t, "vendors.parquet", result.Tables[1].Baseline)
	assert.Equal(t, []string{"1/2/2006"}, result.Tables[1].DateFormats)
}

func TestLoadTablesSingleFile(t *testing.T) {
	result, errs := LoadTables(filepath.Join("testdata", "tables", "vendor.cue"), LoadModeFailFast)
	require.Empty(t, errs)

	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Tables, 1)
	assert.Equal(t, "vendor", result.Tables[0].Name)
	assert.Equal(t, []string{"Vendor Code"}, result.Tables[0].Key)
}

func TestLoadTablesErrors(t *testing.T) {
	empty := t.TempDir()
	notCUE := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(notCUE, []byte("a: 1\n"), 0o644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{name: "missing", path: "/nonexistent/tables", code: ErrCodeNotFound},
		{name: "empty directory", path: empty, code: ErrCodeNoFiles},
		{name: "not a CUE file", path: notCUE, code: ErrCodeNoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, errs := LoadTables(tt.path, LoadModeCollectAll)
			assert.Nil(t, result)
			require.Len(t, errs, 1)

			var loadErr *LoadError
			require.ErrorAs(t, errs[0], &loadErr)
			assert.Equal(t, tt.code, loadErr.Code)
		})
	}
}

func TestLoadTablesCompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := `package tables

table: good: {
	columns: [{name: "id"}, {name: "at", type: "date"}]
	key: ["id"]
	recency: "at"
}

table: nokey: {
	columns: [{name: "id"}, {name: "at", type: "date"}]
	recency: "at"
}

table: norecency: {
	columns: [{name: "id"}]
	key: ["id"]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.cue"), []byte(src), 0o644))

	t.Run("collect all", func(t *testing.T) {
		result, errs := LoadTables(dir, LoadModeCollectAll)
		require.NotNil(t, result)
		require.Len(t, errs, 2)
		require.Len(t, result.Tables, 1)
		assert.Equal(t, "good", result.Tables[0].Name)

		var first *LoadError
		require.ErrorAs(t, errs[0], &first)
		assert.Equal(t, compiler.ErrNoKey, first.Code)
		assert.Contains(t, first.Message, "table.nokey")
	})

	t.Run("fail fast", func(t *testing.T) {
		_, errs := LoadTables(dir, LoadModeFailFast)
		assert.Len(t, errs, 1)
	})
}

func TestLoadTablesNoTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("package x\n\nother: 1\n"), 0o644))

	result, errs := LoadTables(dir, LoadModeFailFast)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no tables found")
}

func TestFindTable(t *testing.T) {
	result, errs := LoadTables(filepath.Join("testdata", "tables"), LoadModeFailFast)
	require.Empty(t, errs)

	spec, err := result.FindTable("price")
	require.NoError(t, err)
	assert.Equal(t, "Updated", spec.Recency)

	_, err = result.FindTable("invoice")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeUnknownTable, loadErr.Code)
	assert.Contains(t, loadErr.Message, "price, vendor")
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, compiler.ErrNoColumns, MapFieldToErrorCode("columns"))
	assert.Equal(t, compiler.ErrInvalidRecency, MapFieldToErrorCode("recency"))
	assert.Equal(t, compiler.ErrUnknownColumn, MapFieldToErrorCode("exclude.Corp Acct"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("cue"))
}
