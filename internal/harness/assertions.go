package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/table"
)

// checkBatch compares one batch against its expectation. A nil
// expectation only requires the run to succeed.
func checkBatch(exp *BatchExpect, br BatchResult, runErr error) []string {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if exp == nil || exp.Error == "" {
		if runErr != nil {
			add("unexpected error: %v", runErr)
			return errs
		}
	} else {
		if runErr == nil {
			add("expected error %s, run succeeded", exp.Error)
		} else if br.Error != exp.Error {
			add("expected error %s, got %s (%v)", exp.Error, br.Error, runErr)
		}
		return errs
	}
	if exp == nil {
		return errs
	}

	got := countsByName(br)
	for _, name := range sortedNames(exp.Counts) {
		if want := exp.Counts[name]; got[name] != want {
			add("count %s: expected %d, got %d", name, want, got[name])
		}
	}

	if exp.Rows != nil && br.Rows != *exp.Rows {
		add("rows: expected %d, got %d", *exp.Rows, br.Rows)
	}
	if exp.DateRange != "" && br.DateRange != exp.DateRange {
		add("date range: expected %q, got %q", exp.DateRange, br.DateRange)
	}
	if exp.Duplicates != nil && br.Duplicates != *exp.Duplicates {
		add("duplicates: expected %d, got %d", *exp.Duplicates, br.Duplicates)
	}

	classes := map[string]string{}
	for _, rec := range br.Records {
		classes[rec.Key] = rec.Class
	}
	for _, key := range sortedNames(exp.Classes) {
		want := exp.Classes[key]
		switch c, ok := classes[key]; {
		case !ok:
			add("class of %s: no record", key)
		case c != want:
			add("class of %s: expected %s, got %s", key, want, c)
		}
	}

	for _, ch := range exp.Changes {
		if !hasChange(br.report, ch) {
			add("change %s %s: %q -> %q not reported", ch.Key, ch.Field, ch.Old, ch.New)
		}
	}

	for _, check := range sortedNames(exp.Validation) {
		if want := exp.Validation[check]; br.Validation[check] != want {
			add("validation %s: expected %d, got %d", check, want, br.Validation[check])
		}
	}
	return errs
}

func countsByName(br BatchResult) map[string]int {
	c := br.Counts
	return map[string]int{
		"new":              c.New,
		"updated":          c.Updated,
		"skipped_outdated": c.SkippedOutdated,
		"unchanged":        c.Unchanged,
		"dropped":          c.Dropped,
		"filtered":         c.Filtered,
		"superseded":       c.Superseded,
		"purged":           br.Purged,
	}
}

func hasChange(rep *engine.ChangeReport, want ChangeExpect) bool {
	if rep == nil {
		return false
	}
	for _, rec := range rep.ByClass(engine.ClassUpdated) {
		if rec.Key.String() != want.Key {
			continue
		}
		for _, ch := range rec.Changes {
			if ch.Field == want.Field && table.Display(ch.Old) == want.Old && table.Display(ch.New) == want.New {
				return true
			}
		}
	}
	return false
}

// checkFinal compares the final table against its expectation.
func checkFinal(exp *FinalExpect, t *table.Table) []string {
	if exp == nil {
		return nil
	}
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if exp.Rows != nil && t.Len() != *exp.Rows {
		add("rows: expected %d, got %d", *exp.Rows, t.Len())
	}

	rows := map[string]table.Row{}
	ks := t.KeySpec()
	for _, row := range t.All() {
		rows[ks.Key(row).String()] = row
	}

	for _, re := range exp.Contains {
		row, ok := rows[re.Key]
		if !ok {
			add("row %s: not found", re.Key)
			continue
		}
		for _, col := range sortedNames(re.Expect) {
			want := re.Expect[col]
			if _, ok := t.Schema().Index(col); !ok {
				add("row %s: unknown column %q", re.Key, col)
				continue
			}
			if got := table.Display(t.Get(row, col)); got != want {
				add("row %s: %s expected %q, got %q", re.Key, col, want, got)
			}
		}
	}

	for _, key := range exp.Absent {
		if _, ok := rows[key]; ok {
			add("row %s: expected absent", key)
		}
	}
	return errs
}

func sortedNames[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
