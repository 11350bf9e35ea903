package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/tablesync/internal/validate"
)

// Markdown renders the run summary.
func Markdown(in Input) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	rep := in.Changes
	line("# Change Report: %s", in.Table)
	line("")
	line("**Generated:** %s  ", in.Generated.Format("2006-01-02 15:04:05"))
	line("**Run:** %s  ", rep.RunID)
	line("**Batch:** %s  ", rep.BatchID)
	line("**Processing Time:** %.2f seconds", in.Duration.Seconds())
	if in.DryRun {
		line("")
		line("> Dry run: the baseline and sync state were not changed.")
	}
	line("")
	line("---")
	line("")

	writeValidation(line, in.Validation)

	line("---")
	line("")
	line("## Change Tracking Summary")
	line("")
	line("### Overall Changes")
	line("")
	c := rep.Counts
	line("- **New Rows:** %s", count(c.New))
	line("- **Updated Rows:** %s", count(c.Updated))
	line("- **Skipped Rows (Outdated):** %s", count(c.SkippedOutdated))
	line("- **Unchanged Rows:** %s", count(c.Unchanged))
	line("- **Dropped Rows:** %s", count(c.Dropped))
	line("- **Filtered Rows:** %s", count(c.Filtered))
	line("- **Purged Rows:** %s", count(rep.Purged))
	line("- **Files Processed:** %d", len(rep.Files))
	line("- **Baseline Rows:** %s -> %s", count(rep.BaselineRows), count(rep.NextRows))
	if rep.WhitespaceOnly > 0 {
		line("- **Whitespace-only Differences:** %s", count(rep.WhitespaceOnly))
	}
	line("")

	if len(rep.ChangesByColumn) > 0 {
		line("### Changes by Column")
		line("")
		for _, col := range ChangedColumns(rep) {
			line("- %s: %s", col, count(rep.ChangesByColumn[col]))
		}
		line("")
	}

	if len(rep.Files) > 0 {
		line("### Per-File Breakdown")
		for _, f := range rep.Files {
			line("")
			line("**File %d: %s**", f.Index+1, filepath.Base(f.Source))
			line("")
			line("- Original Rows: %s", count(f.OriginalRows))
			line("- Rows Dropped: %s", count(f.DroppedRows))
			line("- Rows Filtered: %s", count(f.FilteredRows))
			line("- Rows Superseded: %s", count(f.SupersededRows))
			line("- New Rows: %s", count(f.New))
			line("- Updated Rows: %s", count(f.Updated))
			line("- Skipped Rows (Outdated): %s", count(f.Skipped))
			line("- Unchanged Rows: %s", count(f.Unchanged))
			if len(f.Dates) == 0 {
				line("- Latest Update Date: %s", dateLabel(f.LatestRecency))
				continue
			}
			line("")
			line("Accepted rows by update date:")
			line("")
			for _, d := range f.Dates {
				line("- %s: %s rows", dateLabel(d.Date), count(d.Rows))
			}
		}
		line("")
	}

	if len(rep.Duplicates) > 0 {
		line("### Items Updated Across Multiple Files")
		line("")
		line("- **Items Updated Multiple Times:** %s", count(len(rep.Duplicates)))
		line("- **Total Rows Before Deduplication:** %s", count(totalVersions(rep.Duplicates)))
		line("")
		line("*See the Duplicate Items sheet in the workbook for every version.*")
		line("")
	}

	line("---")
	line("")
	line("*End of Report*")
	return b.String()
}

func writeValidation(line func(string, ...any), v *validate.Report) {
	line("## Data Quality Validation")
	line("")
	switch {
	case v == nil:
		line("**Status:** Not Configured")
		line("")
		return
	case v.HasIssues():
		line("**Status:** Issues Found")
	default:
		line("**Status:** All Checks Passed")
	}
	line("")

	line("### Contract-Vendor Relationship")
	line("")
	switch {
	case !v.Relationship.Ran:
		line("Skipped: %s.", v.Relationship.Skipped)
	case v.Relationship.Count > 0:
		line("**Count:** %s contracts with multiple vendors", count(v.Relationship.Count))
	default:
		line("All contracts have consistent vendor codes.")
	}
	line("")

	line("### Blank Vendor Catalogue")
	line("")
	switch {
	case !v.BlankCatalogue.Ran:
		line("Skipped: %s.", v.BlankCatalogue.Skipped)
	default:
		line("- **Total Blank:** %s", count(v.BlankCatalogue.Count+v.Allowed))
		line("- **Permitted Blank:** %s", count(v.Allowed))
		line("- **Unexpected Blank:** %s", count(v.BlankCatalogue.Count))
	}
	line("")

	line("### Vendor Catalogue Consistency")
	line("")
	switch {
	case !v.Consistency.Ran:
		line("Skipped: %s.", v.Consistency.Skipped)
	case v.Consistency.Count > 0:
		line("**Inconsistent Combinations:** %s", count(v.Consistency.Count))
	default:
		line("All combinations have consistent catalogues.")
	}
	line("")
}
