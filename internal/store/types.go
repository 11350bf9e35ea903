package store

import "time"

// Run statuses.
const (
	StatusCommitted      = "committed"
	StatusDryRun         = "dry_run"
	StatusFailed         = "failed"
	StatusAlreadyApplied = "already_applied"
)

// ChangeSummary is the tally of one run, kept in state and run history.
type ChangeSummary struct {
	New             int    `json:"new"`
	Updated         int    `json:"updated"`
	SkippedOutdated int    `json:"skipped_outdated"`
	Unchanged       int    `json:"unchanged"`
	Dropped         int    `json:"dropped"`
	Filtered        int    `json:"filtered"`
	Superseded      int    `json:"superseded"`
	Purged          int    `json:"purged"`
	DateRange       string `json:"date_range,omitempty"`
}

// ValidationSummary is the outcome of the advisory checks of one run.
type ValidationSummary struct {
	HasIssues bool           `json:"has_issues"`
	Checks    map[string]int `json:"checks,omitempty"`
}

// State is the durable state of one table's committed baseline.
//
// A zero LastUpdate means no baseline has been committed yet.
type State struct {
	Table          string            `json:"table"`
	LastUpdate     time.Time         `json:"last_update"`
	LastBatch      string            `json:"last_batch"`
	RowCount       int               `json:"row_count"`
	ColumnCount    int               `json:"column_count"`
	Fingerprint    string            `json:"fingerprint"`
	LastChanges    ChangeSummary     `json:"last_changes"`
	LastValidation ValidationSummary `json:"last_validation"`
	// AppliedBatches is the size of the applied-batch ledger.
	AppliedBatches int `json:"applied_batches"`
}

// Exists reports whether a baseline was ever committed.
func (s State) Exists() bool { return !s.LastUpdate.IsZero() }

// AppliedBatch is one entry of the applied-batch ledger.
type AppliedBatch struct {
	Seq       int64     `json:"seq"`
	BatchID   string    `json:"batch_id"`
	RunID     string    `json:"run_id"`
	Sources   []string  `json:"sources"`
	AppliedAt time.Time `json:"applied_at"`
}

// Run is one entry of the run history.
type Run struct {
	Seq          int64         `json:"seq"`
	ID           string        `json:"run_id"`
	Table        string        `json:"table"`
	BatchID      string        `json:"batch_id"`
	Status       string        `json:"status"`
	Sources      []string      `json:"sources"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	BaselineRows int           `json:"baseline_rows"`
	NextRows     int           `json:"next_rows"`
	Changes      ChangeSummary `json:"changes"`
	Error        string        `json:"error,omitempty"`
}

// Commit is everything recorded after a baseline commit succeeded.
type Commit struct {
	State State
	Run   Run
}
