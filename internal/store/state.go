package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LoadState returns the state of table. A table that was never committed
// returns a zero State with only Table set.
func (s *Store) LoadState(ctx context.Context, table string) (State, error) {
	st := State{Table: table}

	var lastUpdate, changes, validation string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_update, last_batch, row_count, column_count, fingerprint, last_changes, last_validation
		FROM sync_state
		WHERE table_name = ?
	`, table).Scan(&lastUpdate, &st.LastBatch, &st.RowCount, &st.ColumnCount, &st.Fingerprint, &changes, &validation)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return st, nil
	case err != nil:
		return State{}, fmt.Errorf("load state: %w", err)
	}

	if st.LastUpdate, err = parseTime(lastUpdate); err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	if st.LastChanges, err = unmarshalChanges(changes); err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	if st.LastValidation, err = unmarshalValidation(validation); err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applied_batches WHERE table_name = ?`, table,
	).Scan(&st.AppliedBatches); err != nil {
		return State{}, fmt.Errorf("load state: count batches: %w", err)
	}
	return st, nil
}

// IsApplied reports whether batchID is in table's applied-batch ledger.
func (s *Store) IsApplied(ctx context.Context, table, batchID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applied_batches WHERE table_name = ? AND batch_id = ?
	`, table, batchID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is applied: %w", err)
	}
	return n > 0, nil
}

// Commit records a committed baseline in one transaction: the table state
// is replaced, the batch joins the ledger and the run is appended to the
// history. Re-committing a batch id (a forced re-run) moves the ledger
// entry to the new run.
//
// Call Commit only after the baseline itself was persisted.
func (s *Store) Commit(ctx context.Context, c Commit) error {
	st, run := c.State, c.Run
	if st.Table == "" || run.BatchID == "" {
		return fmt.Errorf("commit: table and batch id are required")
	}

	changes, err := marshalChanges(st.LastChanges)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	validation, err := marshalValidation(st.LastValidation)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	sources, err := marshalSources(run.Sources)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_state
		(table_name, last_update, last_batch, row_count, column_count, fingerprint, last_changes, last_validation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_update = excluded.last_update,
			last_batch = excluded.last_batch,
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			fingerprint = excluded.fingerprint,
			last_changes = excluded.last_changes,
			last_validation = excluded.last_validation
	`,
		st.Table,
		formatTime(st.LastUpdate),
		run.BatchID,
		st.RowCount,
		st.ColumnCount,
		st.Fingerprint,
		changes,
		validation,
	)
	if err != nil {
		return fmt.Errorf("commit: write state: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO applied_batches
		(table_name, batch_id, run_id, sources, applied_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(table_name, batch_id) DO UPDATE SET
			run_id = excluded.run_id,
			sources = excluded.sources,
			applied_at = excluded.applied_at
	`,
		st.Table,
		run.BatchID,
		run.ID,
		sources,
		formatTime(st.LastUpdate),
	)
	if err != nil {
		return fmt.Errorf("commit: record batch: %w", err)
	}

	run.Table = st.Table
	run.Status = StatusCommitted
	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordRun appends a run that did not commit (dry run, failure or
// refused batch) to the history. State and ledger are untouched.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if run.Status == StatusCommitted {
		return fmt.Errorf("record run: committed runs are recorded by Commit")
	}
	if err := insertRun(ctx, s.db, run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, db execer, run Run) error {
	sources, err := marshalSources(run.Sources)
	if err != nil {
		return err
	}
	changes, err := marshalChanges(run.Changes)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, table_name, batch_id, status, sources, started_at, finished_at, baseline_rows, next_rows, changes, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Table,
		run.BatchID,
		run.Status,
		sources,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		run.BaselineRows,
		run.NextRows,
		changes,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// AppliedBatches returns table's ledger in application order.
//
// Returns an empty slice (not nil) if no batch was applied.
func (s *Store) AppliedBatches(ctx context.Context, table string) ([]AppliedBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, batch_id, run_id, sources, applied_at
		FROM applied_batches
		WHERE table_name = ?
		ORDER BY seq ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("query applied batches: %w", err)
	}
	defer rows.Close()

	out := []AppliedBatch{}
	for rows.Next() {
		var (
			b                AppliedBatch
			sources, applied string
		)
		if err := rows.Scan(&b.Seq, &b.BatchID, &b.RunID, &sources, &applied); err != nil {
			return nil, fmt.Errorf("scan applied batch: %w", err)
		}
		if b.Sources, err = unmarshalSources(sources); err != nil {
			return nil, err
		}
		if b.AppliedAt, err = parseTime(applied); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied batches: %w", err)
	}
	return out, nil
}

// Runs returns up to limit of table's most recent runs, newest first.
// A limit of zero or less returns every run.
func (s *Store) Runs(ctx context.Context, table string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, run_id, table_name, batch_id, status, sources, started_at, finished_at,
		       baseline_rows, next_rows, changes, error
		FROM runs
		WHERE table_name = ?
		ORDER BY seq DESC
		LIMIT ?
	`, table, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// LastRun returns table's most recent run.
func (s *Store) LastRun(ctx context.Context, table string) (Run, bool, error) {
	runs, err := s.Runs(ctx, table, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(runs) == 0 {
		return Run{}, false, nil
	}
	return runs[0], true, nil
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		r                                Run
		sources, started, finished, chgs string
	)
	err := rows.Scan(&r.Seq, &r.ID, &r.Table, &r.BatchID, &r.Status, &sources, &started, &finished,
		&r.BaselineRows, &r.NextRows, &chgs, &r.Error)
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if r.Sources, err = unmarshalSources(sources); err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	if r.Changes, err = unmarshalChanges(chgs); err != nil {
		return Run{}, err
	}
	return r, nil
}
