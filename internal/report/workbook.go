package report

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/table"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetPerFile    = "Per-File Summary"
	SheetByDate     = "Accepted Rows by Date"
	SheetNew        = "New Rows"
	SheetUpdated    = "Updated Rows"
	SheetDuplicates = "Duplicate Items"
	SheetDropped    = "Dropped Rows"
	SheetValidation = "Validation Issues"
)

// Workbook builds the detail workbook. Sheets without rows are left out,
// except Summary which is always present.
func Workbook(in Input) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("report: %w", err)
	}

	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetSummary, []any{"Category", "Metric", "Value"}, summaryRows(in)},
		{SheetPerFile, perFileHeader, perFileRows(in.Changes)},
		{SheetByDate, []any{"File Name", "Update Date", "Row Count"}, byDateRows(in.Changes)},
		{SheetNew, newHeader(in), newRows(in)},
		{SheetUpdated, updatedHeader(in), updatedRows(in)},
		{SheetDuplicates, duplicateHeader(in), duplicateRows(in)},
		{SheetDropped, []any{"File Name", "Row", "Error"}, droppedRows(in.Changes)},
		{SheetValidation, []any{"Issue Type", "Reference", "Details"}, validationRows(in)},
	}
	for _, s := range sheets {
		if s.name != SheetSummary && len(s.rows) == 0 {
			continue
		}
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("report: sheet %q: %w", s.name, err)
		}
	}
	return f, nil
}

func writeSheet(f *excelize.File, name string, header []any, rows [][]any) error {
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// cell converts a table value into something excelize writes natively.
func cell(v table.Value) any {
	switch x := v.(type) {
	case nil, table.Null:
		return nil
	case table.Int:
		return int64(x)
	case table.Decimal:
		return x.Decimal().InexactFloat64()
	default:
		return v.String()
	}
}

func keyCells(in Input, k table.Key) []any {
	vals, err := k.Values()
	if err != nil {
		return []any{k.String()}
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = cell(v)
	}
	return out
}

func keyHeader(in Input) []any {
	cols := in.Key.Columns()
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}

func summaryRows(in Input) [][]any {
	rep, v := in.Changes, in.Validation
	status := "Not Configured"
	switch {
	case v.HasIssues():
		status = "Issues Found"
	case v != nil:
		status = "All Checks Passed"
	}
	rows := [][]any{
		{"Run", "Run ID", rep.RunID},
		{"Run", "Batch ID", rep.BatchID},
		{"Run", "Dry Run", in.DryRun},
		{"Run", "Update Date Range", engine.DateRange(rep)},
		{"Validation", "Status", status},
	}
	if v != nil {
		rows = append(rows,
			[]any{"Validation", "Contracts with Multiple Vendors", v.Relationship.Count},
			[]any{"Validation", "Blank Vendor Catalogues", v.BlankCatalogue.Count},
			[]any{"Validation", "Permitted Blank Catalogues", v.Allowed},
			[]any{"Validation", "Inconsistent Vendor Catalogues", v.Consistency.Count},
		)
	}
	c := rep.Counts
	rows = append(rows,
		[]any{"Changes", "New Rows", c.New},
		[]any{"Changes", "Updated Rows", c.Updated},
		[]any{"Changes", "Skipped Rows (Outdated)", c.SkippedOutdated},
		[]any{"Changes", "Unchanged Rows", c.Unchanged},
		[]any{"Changes", "Dropped Rows", c.Dropped},
		[]any{"Changes", "Filtered Rows", c.Filtered},
		[]any{"Changes", "Purged Rows", rep.Purged},
		[]any{"Changes", "Files Processed", len(rep.Files)},
		[]any{"Changes", "Baseline Rows Before", rep.BaselineRows},
		[]any{"Changes", "Baseline Rows After", rep.NextRows},
		[]any{"Duplicates", "Items Updated Multiple Times", len(rep.Duplicates)},
		[]any{"Duplicates", "Rows Superseded", c.Superseded},
	)
	return rows
}

var perFileHeader = []any{
	"File Name", "File #", "Original Rows", "Rows Dropped", "Rows Filtered", "Rows Superseded",
	"New Rows", "Updated Rows", "Skipped Rows", "Unchanged Rows", "Latest Update Date",
}

func perFileRows(rep *engine.ChangeReport) [][]any {
	rows := make([][]any, 0, len(rep.Files))
	for _, f := range rep.Files {
		rows = append(rows, []any{
			filepath.Base(f.Source), f.Index + 1, f.OriginalRows, f.DroppedRows, f.FilteredRows,
			f.SupersededRows, f.New, f.Updated, f.Skipped, f.Unchanged, cell(f.LatestRecency),
		})
	}
	return rows
}

func byDateRows(rep *engine.ChangeReport) [][]any {
	var rows [][]any
	for _, f := range rep.Files {
		for _, d := range f.Dates {
			rows = append(rows, []any{filepath.Base(f.Source), cell(d.Date), d.Rows})
		}
	}
	return rows
}

func newHeader(in Input) []any {
	names := in.Schema.Names()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func newRows(in Input) [][]any {
	var rows [][]any
	for _, rec := range in.Changes.ByClass(engine.ClassNew) {
		row := make([]any, len(rec.Row))
		for i, v := range rec.Row {
			row[i] = cell(v)
		}
		rows = append(rows, row)
	}
	return rows
}

func updatedHeader(in Input) []any {
	return append(keyHeader(in), "Field", "Old Value", "New Value", "Old Update Date", "New Update Date", "Source")
}

// updatedRows lists one row per changed field, with whitespace-only
// differences marked in the Field column.
func updatedRows(in Input) [][]any {
	var rows [][]any
	add := func(rec engine.ChangeRecord, fc engine.FieldChange, field string) {
		row := keyCells(in, rec.Key)
		row = append(row, field, cell(fc.Old), cell(fc.New),
			cell(rec.BaseRecency), cell(rec.Recency), filepath.Base(rec.Source))
		rows = append(rows, row)
	}
	for _, rec := range in.Changes.Records {
		if rec.Class != engine.ClassUpdated && len(rec.Whitespace) == 0 {
			continue
		}
		for _, fc := range rec.Changes {
			add(rec, fc, fc.Field)
		}
		for _, fc := range rec.Whitespace {
			add(rec, fc, fc.Field+" (whitespace)")
		}
	}
	return rows
}

func duplicateHeader(in Input) []any {
	return append(keyHeader(in), "Times Updated", "Version", "Update Date", "Source", "Row", "Kept")
}

func duplicateRows(in Input) [][]any {
	var rows [][]any
	for _, g := range in.Changes.Duplicates {
		for i, v := range g.Versions {
			kept := "No"
			if v.Winner {
				kept = "Yes"
			}
			row := keyCells(in, g.Key)
			row = append(row, len(g.Versions), i+1, cell(v.Recency), filepath.Base(v.Source), v.Line, kept)
			rows = append(rows, row)
		}
	}
	return rows
}

func droppedRows(rep *engine.ChangeReport) [][]any {
	rows := make([][]any, 0, len(rep.Dropped))
	for _, d := range rep.Dropped {
		msg := ""
		if d.Err != nil {
			msg = d.Err.Error()
		}
		rows = append(rows, []any{filepath.Base(d.Source), d.Row, msg})
	}
	return rows
}

func validationRows(in Input) [][]any {
	v := in.Validation
	if v == nil {
		return nil
	}
	var rows [][]any
	for _, cv := range v.Relationship.Items {
		rows = append(rows, []any{"Contract-Vendor Mismatch", cv.Contract,
			"Multiple vendors: " + strings.Join(cv.Vendors, ", ")})
	}
	for _, br := range v.BlankCatalogue.Items {
		rows = append(rows, []any{"Unexpected Blank Vendor Catalogue", br.Identity,
			"Vendor Catalogue is blank but not in permitted list"})
	}
	for _, g := range v.Consistency.Items {
		details := fmt.Sprintf("Vendor %s, account %s: %d different catalogues [%s]",
			g.Vendor, g.AccountPrefix, len(g.Catalogues), strings.Join(g.Catalogues, ", "))
		if len(g.Sequences) > 0 {
			details += " seq " + strings.Join(g.Sequences, ", ")
		}
		rows = append(rows, []any{"Inconsistent Vendor Catalogue", g.Identity, details})
	}
	return rows
}

// ChangedColumns lists the columns with at least one content change,
// most changed first.
func ChangedColumns(rep *engine.ChangeReport) []string {
	cols := slices.Collect(maps.Keys(rep.ChangesByColumn))
	slices.SortFunc(cols, func(a, b string) int {
		if d := rep.ChangesByColumn[b] - rep.ChangesByColumn[a]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	return cols
}
