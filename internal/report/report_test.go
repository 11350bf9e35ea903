package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

func testSchema() (*table.Schema, *table.KeySpec) {
	s := table.MustSchema(
		table.Column{Name: "id", Type: table.TypeString},
		table.Column{Name: "updated", Type: table.TypeDate},
		table.Column{Name: "price", Type: table.TypeDecimal},
		table.Column{Name: "name", Type: table.TypeString},
	)
	return s, table.MustKeySpec(s, "id")
}

func testInput() Input {
	s, ks := testSchema()
	day := table.MustDate("2025-11-10")

	newRow := table.Row{table.String("A"), day, table.MustDecimal("10.5"), table.String("Widget")}
	updRow := table.Row{table.String("B"), day, table.MustDecimal("3"), table.String("Bolt")}

	rep := &engine.ChangeReport{
		RunID:   "run-1",
		BatchID: "batch-1",
		Counts: engine.Counts{
			New: 1200, Updated: 2, SkippedOutdated: 1, Dropped: 1, Superseded: 1,
		},
		BaselineRows:    10000,
		NextRows:        11200,
		ChangesByColumn: map[string]int{"Vendor Name": 1, "Purchase UOM Price": 2},
		EarliestRecency: day,
		LatestRecency:   day,
		Files: []engine.FileStats{
			{
				Index: 0, Source: "/in/inc_a.xlsx", OriginalRows: 1203, DroppedRows: 1, SupersededRows: 1,
				AcceptedRows: 1200, New: 1199, Updated: 1, Skipped: 1, LatestRecency: day,
				Dates: []engine.DateBucket{{Date: day, Rows: 1200}},
			},
			{
				Index: 1, Source: "/in/inc_b.csv", OriginalRows: 2, AcceptedRows: 2, New: 1, Updated: 1,
				LatestRecency: table.Null{},
				Dates:         []engine.DateBucket{{Date: table.Null{}, Rows: 2}},
			},
			{Index: 2, Source: "/in/inc_c.xlsx", LatestRecency: table.Null{}},
		},
		Records: []engine.ChangeRecord{
			{Key: ks.Key(newRow), Class: engine.ClassNew, Row: newRow, Source: "/in/inc_a.xlsx", Recency: day, BaseRecency: table.Null{}},
			{
				Key: ks.Key(updRow), Class: engine.ClassUpdated, Row: updRow, Source: "/in/inc_b.csv",
				Recency: day, BaseRecency: table.MustDate("2025-11-01"),
				Changes: []engine.FieldChange{{Field: "price", Old: table.MustDecimal("2.75"), New: table.MustDecimal("3")}},
				Whitespace: []engine.FieldChange{{Field: "name", Old: table.String("Bo lt"), New: table.String("Bolt")}},
			},
		},
		Duplicates: []engine.DuplicateGroup{{
			Key: ks.Key(newRow),
			Versions: []engine.Version{
				{File: 0, Source: "/in/inc_a.xlsx", Line: 4, Seq: 4, Recency: table.MustDate("2025-11-09"), Row: newRow},
				{File: 0, Source: "/in/inc_a.xlsx", Line: 9, Seq: 9, Recency: day, Row: newRow, Winner: true},
			},
		}},
		Dropped: []engine.DroppedRow{{
			Source: "/in/inc_a.xlsx", Row: 7,
			Err: &engine.SyncError{Code: engine.ErrCodeInputRow, Message: "row dropped", Source: "/in/inc_a.xlsx", Row: 7},
		}},
	}

	val := &validate.Report{
		Relationship: validate.CheckResult[validate.ContractVendors]{
			Ran: true, Count: 1,
			Items: []validate.ContractVendors{{Contract: "C-1", Vendors: []string{"V01", "V02"}}},
		},
		BlankCatalogue: validate.CheckResult[validate.BlankRow]{
			Ran: true, Count: 2,
			Items: []validate.BlankRow{{Identity: "1001"}, {Identity: "1002"}},
		},
		Consistency: validate.CheckResult[validate.InconsistentGroup]{
			Skipped: "identity, vendor, catalogue or account column not configured",
		},
		Allowed: 3,
	}

	return Input{
		Table:      "item_price",
		Schema:     s,
		Key:        ks,
		Changes:    rep,
		Validation: val,
		Duration:   1500 * time.Millisecond,
		Generated:  time.Date(2025, 11, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestMarkdownGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "markdown_summary", []byte(Markdown(testInput())))
}

func TestMarkdownDryRunWithoutValidation(t *testing.T) {
	in := testInput()
	in.DryRun = true
	in.Validation = nil
	in.Changes.Duplicates = nil

	md := Markdown(in)
	assert.Contains(t, md, "> Dry run: the baseline and sync state were not changed.")
	assert.Contains(t, md, "**Status:** Not Configured")
	assert.NotContains(t, md, "Items Updated Across Multiple Files")
}

func TestStem(t *testing.T) {
	in := testInput()
	assert.Equal(t, "item_price_report_2025-11-10", Stem(in))

	in.Changes.LatestRecency = table.MustDate("2025-11-12")
	assert.Equal(t, "item_price_report_2025-11-10~2025-11-12", Stem(in))

	in.Changes = &engine.ChangeReport{}
	assert.Equal(t, "item_price_report_no_data", Stem(in))
}

func TestChangedColumns(t *testing.T) {
	rep := &engine.ChangeReport{ChangesByColumn: map[string]int{"b": 1, "a": 1, "c": 5}}
	assert.Equal(t, []string{"c", "a", "b"}, ChangedColumns(rep))
}

func TestWorkbookSheets(t *testing.T) {
	wb, err := Workbook(testInput())
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{
		SheetSummary, SheetPerFile, SheetByDate, SheetNew, SheetUpdated,
		SheetDuplicates, SheetDropped, SheetValidation,
	}, wb.GetSheetList())
}

func TestWorkbookOmitsEmptySheets(t *testing.T) {
	in := testInput()
	in.Changes.Records = nil
	in.Changes.Duplicates = nil
	in.Changes.Dropped = nil
	in.Validation = nil

	wb, err := Workbook(in)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{SheetSummary, SheetPerFile, SheetByDate}, wb.GetSheetList())
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	paths, err := Write(dir, testInput())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "item_price_report_2025-11-10.md"), paths.Markdown)
	assert.Equal(t, filepath.Join(dir, "item_price_report_2025-11-10.xlsx"), paths.Workbook)

	md, err := os.ReadFile(paths.Markdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Change Report: item_price")

	f, err := excelize.OpenFile(paths.Workbook)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetNew)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "updated", "price", "name"}, rows[0])
	assert.Equal(t, []string{"A", "2025-11-10", "10.5", "Widget"}, rows[1])

	rows, err = f.GetRows(SheetUpdated)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "Field", "Old Value", "New Value", "Old Update Date", "New Update Date", "Source"}, rows[0])
	assert.Equal(t, []string{"B", "price", "2.75", "3", "2025-11-01", "2025-11-10", "inc_b.csv"}, rows[1])
	assert.Equal(t, "name (whitespace)", rows[2][1])

	rows, err = f.GetRows(SheetDuplicates)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"A", "2", "2", "2025-11-10", "inc_a.xlsx", "9", "Yes"}, rows[2])

	rows, err = f.GetRows(SheetValidation)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Contract-Vendor Mismatch", "C-1", "Multiple vendors: V01, V02"}, rows[1])

	rows, err = f.GetRows(SheetPerFile)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "inc_a.xlsx", rows[1][0])
	assert.Equal(t, "2025-11-10", rows[1][10])
}
