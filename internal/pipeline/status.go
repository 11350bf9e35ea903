package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/tablesync/internal/baseline"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/validate"
)

// Status describes a table's persisted state.
type Status struct {
	Table    string         `json:"table"`
	State    store.State    `json:"state"`
	Baseline *baseline.Info `json:"baseline,omitempty"`
	LastRun  *store.Run     `json:"last_run,omitempty"`
}

// Status reads state, baseline footer and the latest run. A missing
// baseline leaves Baseline nil.
func (s *Syncer) Status(ctx context.Context) (*Status, error) {
	st, err := s.cfg.Store.LoadState(ctx, s.Table())
	if err != nil {
		return nil, err
	}
	out := &Status{Table: s.Table(), State: st}

	info, err := baseline.Stat(s.cfg.BaselinePath)
	switch {
	case errors.Is(err, baseline.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		out.Baseline = &info
	}

	run, ok, err := s.cfg.Store.LastRun(ctx, s.Table())
	if err != nil {
		return nil, err
	}
	if ok {
		out.LastRun = &run
	}
	return out, nil
}

// History returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Syncer) History(ctx context.Context, limit int) ([]store.Run, error) {
	return s.cfg.Store.Runs(ctx, s.Table(), limit)
}

// Validate re-runs the validator over the stored baseline.
func (s *Syncer) Validate(ctx context.Context, allow validate.AllowList) (*validate.Report, error) {
	v := s.engine.Validator()
	if v == nil {
		return nil, fmt.Errorf("table %q has no validation configured", s.Table())
	}
	st, err := s.cfg.Store.LoadState(ctx, s.Table())
	if err != nil {
		return nil, err
	}
	base, err := s.loadBaseline(ctx, st)
	if err != nil {
		return nil, err
	}
	return v.Validate(base, allow), nil
}
