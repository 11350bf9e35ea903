package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

// Input is everything a report is rendered from.
type Input struct {
	Table      string
	Schema     *table.Schema
	Key        *table.KeySpec
	Changes    *engine.ChangeReport
	Validation *validate.Report
	Duration   time.Duration
	Generated  time.Time
	DryRun     bool
}

// Paths are the files written by Write.
type Paths struct {
	Markdown string `json:"markdown"`
	Workbook string `json:"workbook"`
}

// Stem returns the file name stem shared by both report files.
func Stem(in Input) string {
	return fmt.Sprintf("%s_report_%s", in.Table, engine.DateRange(in.Changes))
}

// Write renders both reports into dir, replacing earlier reports with
// the same stem.
func Write(dir string, in Input) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("report: %w", err)
	}
	stem := filepath.Join(dir, Stem(in))
	p := Paths{Markdown: stem + ".md", Workbook: stem + ".xlsx"}

	if err := os.WriteFile(p.Markdown, []byte(Markdown(in)), 0o644); err != nil {
		return Paths{}, fmt.Errorf("report: write markdown: %w", err)
	}

	wb, err := Workbook(in)
	if err != nil {
		return Paths{}, err
	}
	defer wb.Close()
	if err := wb.SaveAs(p.Workbook); err != nil {
		return Paths{}, fmt.Errorf("report: write workbook: %w", err)
	}
	return p, nil
}

var printer = message.NewPrinter(language.English)

// count formats n with thousands separators.
func count(n int) string {
	return printer.Sprintf("%d", n)
}

func dateLabel(v table.Value) string {
	if table.IsNull(v) {
		return "no date"
	}
	return v.String()
}

func totalVersions(groups []engine.DuplicateGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Versions)
	}
	return n
}
