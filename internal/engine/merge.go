package engine

import (
	"errors"

	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/table"
)

// MergeStats summarizes how the next baseline was assembled.
type MergeStats struct {
	Kept     int // untouched baseline rows carried over
	Replaced int // baseline rows superseded by Updated records
	Added    int // New records
	Purged   int // untouched baseline rows removed by exclusion rules
}

// Merge builds the next baseline: baseline rows whose keys were not
// accepted keep their order, then New and Updated rows follow in record
// order. Untouched rows matching an exclusion rule are purged.
//
// The result is checked before it is returned: keys must be unique and
// the row count must equal len(base) + New - Purged. A failed check is an
// INVARIANT_VIOLATION and the baseline must not be committed.
func Merge(base *table.Table, records []ChangeRecord, exclude *normalize.Exclusions) (*table.Table, MergeStats, error) {
	var stats MergeStats

	merged := make(map[table.Key]bool)
	for _, r := range records {
		if !r.Class.Merged() {
			continue
		}
		if merged[r.Key] {
			return nil, stats, NewInvariantError("key %s merged twice", r.Key)
		}
		merged[r.Key] = true
	}

	ks := base.KeySpec()
	rows := make([]table.Row, 0, base.Len()+len(merged))
	for _, row := range base.All() {
		if merged[ks.Key(row)] {
			stats.Replaced++
			continue
		}
		if _, excluded := exclude.Match(row); excluded {
			stats.Purged++
			continue
		}
		rows = append(rows, row)
		stats.Kept++
	}
	for _, r := range records {
		if !r.Class.Merged() {
			continue
		}
		if r.Class == ClassNew {
			stats.Added++
		}
		rows = append(rows, r.Row)
	}

	next, err := table.New(base.Schema(), ks, rows)
	if err != nil {
		var dup *table.DuplicateKeyError
		if errors.As(err, &dup) {
			e := NewInvariantError("merged table has duplicate key")
			e.Key = dup.Key.String()
			e.Err = err
			return nil, stats, e
		}
		e := NewInvariantError("merged table is malformed")
		e.Err = err
		return nil, stats, e
	}

	if want := base.Len() + stats.Added - stats.Purged; next.Len() != want {
		return nil, stats, NewInvariantError("merged table has %d rows, want %d (base %d + new %d - purged %d)",
			next.Len(), want, base.Len(), stats.Added, stats.Purged)
	}
	return next, stats, nil
}
