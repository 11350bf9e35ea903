package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2025, 11, 20, 9, 30, 0, 0, time.UTC)

// testCommit is a committed run of batchID that leaves rows rows.
func testCommit(table, batchID, runID string, rows int) Commit {
	return Commit{
		State: State{
			Table:       table,
			LastUpdate:  testEpoch,
			RowCount:    rows,
			ColumnCount: 12,
			Fingerprint: "fp-" + batchID,
			LastChanges: ChangeSummary{New: rows, DateRange: "2025-11-19"},
			LastValidation: ValidationSummary{
				HasIssues: true,
				Checks:    map[string]int{"relationship": 1},
			},
		},
		Run: Run{
			ID:         runID,
			BatchID:    batchID,
			Sources:    []string{"inc-" + batchID + ".xlsx"},
			StartedAt:  testEpoch.Add(-time.Minute),
			FinishedAt: testEpoch,
			NextRows:   rows,
			Changes:    ChangeSummary{New: rows},
		},
	}
}

func sqliteNames(t *testing.T, s *Store, query string, args ...any) []string {
	t.Helper()
	rows, err := s.db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		out = append(out, name)
	}
	require.NoError(t, rows.Err())
	return out
}
