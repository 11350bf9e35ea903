package harness

import (
	"github.com/roach88/tablesync/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every batch and final expectation matched.
	Pass bool `json:"pass"`

	// Batches holds one entry per executed batch, in order.
	Batches []BatchResult `json:"batches"`

	// Final is the table left after the last batch.
	Final TableSnapshot `json:"final"`

	// Errors contains expectation mismatches.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// BatchResult summarizes one engine run.
type BatchResult struct {
	Name       string           `json:"name"`
	RunID      string           `json:"run_id"`
	Status     string           `json:"status"` // "committed", "dry_run" or "failed"
	Error      string           `json:"error,omitempty"`
	Counts     engine.Counts    `json:"counts"`
	Purged     int              `json:"purged"`
	Rows       int              `json:"rows"`
	DateRange  string           `json:"date_range"`
	Records    []RecordSnapshot `json:"records"`
	Duplicates int              `json:"duplicates"`
	Validation map[string]int   `json:"validation,omitempty"`

	report *engine.ChangeReport
}

// RecordSnapshot is one change record in display form.
type RecordSnapshot struct {
	Key     string   `json:"key"`
	Class   string   `json:"class"`
	Source  string   `json:"source"`
	Line    int      `json:"line"`
	Changes []string `json:"changes,omitempty"` // "column: old -> new"
}

// TableSnapshot is a table in display form, rows in table order.
type TableSnapshot struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Batches: []BatchResult{},
		Errors:  []string{},
	}
}

// AddError adds an expectation mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
