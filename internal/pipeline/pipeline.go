package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tablesync/internal/baseline"
	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/metrics"
	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/report"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

// Config wires a Syncer.
type Config struct {
	Definition   *compiler.Definition
	BaselinePath string
	Store        *store.Store
	// ReportDir receives Markdown and xlsx reports; empty disables them.
	ReportDir string
	Workers   int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	RunIDs    engine.RunIDGenerator
	// Now defaults to time.Now.
	Now func() time.Time
}

// Options tune one Apply call.
type Options struct {
	// Force re-applies a batch that is already in the ledger.
	Force bool
	// DryRun computes everything but writes neither baseline nor state.
	DryRun bool
	// AllowList exempts identities from the blank catalogue check.
	AllowList validate.AllowList
}

// Outcome is what Apply reports back.
type Outcome struct {
	Status  string
	RunID   string
	BatchID string
	Result  *engine.Result
	State   store.State
	Reports *report.Paths
}

// Syncer applies batches to one table.
type Syncer struct {
	mu     sync.Mutex
	cfg    Config
	engine *engine.Engine
	log    *zap.Logger
}

// New builds a Syncer and its engine.
func New(cfg Config) (*Syncer, error) {
	if cfg.Definition == nil || cfg.Store == nil || cfg.BaselinePath == "" {
		return nil, fmt.Errorf("pipeline: definition, store and baseline path are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunIDs == nil {
		cfg.RunIDs = engine.UUIDv7Generator{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	def := cfg.Definition
	log := cfg.Logger.With(zap.String("table", def.Name()))
	eng, err := engine.New(engine.Config{
		Schema:      def.Schema,
		Key:         def.Key,
		Recency:     def.Spec.Recency,
		Ignore:      def.Spec.Ignore,
		DateFormats: def.Spec.DateFormats,
		Exclude:     def.Spec.Exclude,
		Validation:  def.Spec.Validation,
		Workers:     cfg.Workers,
		Logger:      log.Named("engine"),
		Metrics:     cfg.Metrics,
		RunIDs:      cfg.RunIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return &Syncer{cfg: cfg, engine: eng, log: log}, nil
}

// Table returns the table name.
func (s *Syncer) Table() string { return s.cfg.Definition.Name() }

// Apply runs files as one batch. The returned Outcome is populated even
// when err is non-nil, as far as the run got.
func (s *Syncer) Apply(ctx context.Context, files []normalize.RawFile, opts Options) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.cfg.Now()
	batch := engine.Batch(files)
	out := &Outcome{BatchID: batch.ID()}
	log := s.log.With(zap.String("batch_id", short(out.BatchID)))

	applied, err := s.cfg.Store.IsApplied(ctx, s.Table(), out.BatchID)
	if err != nil {
		return out, err
	}
	if applied && !opts.Force {
		out.Status = store.StatusAlreadyApplied
		out.RunID = s.cfg.RunIDs.Generate()
		refused := engine.NewAlreadyAppliedError(short(out.BatchID))
		if err := s.record(ctx, store.Run{
			ID: out.RunID, BatchID: out.BatchID, Status: out.Status, Sources: batch.Sources(),
			StartedAt: started, FinishedAt: s.cfg.Now(), Error: refused.Error(),
		}); err != nil {
			return out, err
		}
		s.cfg.Metrics.RunFinished(out.Status)
		log.Warn("batch already applied", zap.Strings("sources", batch.Sources()))
		return out, refused
	}
	if applied {
		log.Info("re-applying batch", zap.Bool("force", true))
	}

	st, err := s.cfg.Store.LoadState(ctx, s.Table())
	if err != nil {
		return out, err
	}
	base, err := s.loadBaseline(ctx, st)
	if err != nil {
		return out, err
	}

	var committer engine.Committer
	if !opts.DryRun {
		committer = engine.CommitFunc(func(ctx context.Context, res *engine.Result) error {
			next, err := s.commit(ctx, res, batch, started)
			out.State = next
			return err
		})
	}

	res, runErr := s.engine.Run(ctx, engine.Input{Baseline: base, Batch: batch, AllowList: opts.AllowList}, committer)
	out.Result, out.RunID = res, res.RunID

	switch {
	case runErr != nil:
		out.Status = store.StatusFailed
	case res.DryRun:
		out.Status = store.StatusDryRun
	default:
		out.Status = store.StatusCommitted
	}

	if out.Status != store.StatusCommitted {
		// Recording must survive a cancelled ctx so the failure is visible.
		run := s.runRecord(res, batch, started, out.Status)
		if runErr != nil {
			run.Error = runErr.Error()
		}
		if err := s.record(context.WithoutCancel(ctx), run); err != nil {
			log.Error("failed to record run", zap.Error(err))
		}
	}
	if runErr != nil {
		return out, runErr
	}

	if s.cfg.ReportDir != "" {
		paths, err := report.Write(s.cfg.ReportDir, report.Input{
			Table:      s.Table(),
			Schema:     s.engine.Schema(),
			Key:        s.engine.KeySpec(),
			Changes:    res.Report,
			Validation: res.Validation,
			Duration:   s.cfg.Now().Sub(started),
			Generated:  started,
			DryRun:     res.DryRun,
		})
		if err != nil {
			log.Warn("failed to write reports", zap.Error(err))
		} else {
			out.Reports = &paths
			log.Info("reports written", zap.String("markdown", paths.Markdown), zap.String("workbook", paths.Workbook))
		}
	}
	return out, nil
}

// loadBaseline reads the stored baseline. A missing file is an empty
// table only while the state has no commit.
func (s *Syncer) loadBaseline(ctx context.Context, st store.State) (*table.Table, error) {
	def := s.cfg.Definition
	base, err := baseline.Load(ctx, s.cfg.BaselinePath, def.Schema, def.Key)
	switch {
	case errors.Is(err, baseline.ErrNotFound) && !st.Exists():
		s.log.Info("no baseline yet, starting empty", zap.String("path", s.cfg.BaselinePath))
		return table.Empty(def.Schema, def.Key), nil
	case errors.Is(err, baseline.ErrNotFound):
		return nil, &engine.SyncError{
			Code:    engine.ErrCodeInvalidInput,
			Phase:   engine.PhaseIdle,
			Message: fmt.Sprintf("state records %d rows at %s but the baseline file is missing", st.RowCount, st.LastUpdate.Format(time.RFC3339)),
			Source:  s.cfg.BaselinePath,
			Err:     err,
		}
	case err != nil:
		return nil, &engine.SyncError{
			Code:    engine.ErrCodeInvalidInput,
			Phase:   engine.PhaseIdle,
			Message: "baseline cannot be read",
			Source:  s.cfg.BaselinePath,
			Err:     err,
		}
	}

	if st.Fingerprint != "" {
		if fp := table.Fingerprint(base); fp != st.Fingerprint {
			return nil, &engine.SyncError{
				Code:    engine.ErrCodeInvalidInput,
				Phase:   engine.PhaseIdle,
				Message: fmt.Sprintf("baseline fingerprint %s does not match committed state %s", short(fp), short(st.Fingerprint)),
				Source:  s.cfg.BaselinePath,
			}
		}
	}
	return base, nil
}

// commit stages the next baseline, records the state and only then puts
// the staged file in place. A failed state write discards the staged file,
// so the prior baseline stays authoritative. A failed rename after the
// state write leaves the state ahead of the file; loadBaseline refuses
// that pair on the next run through the fingerprint check.
func (s *Syncer) commit(ctx context.Context, res *engine.Result, batch engine.Batch, started time.Time) (store.State, error) {
	staged, err := baseline.Stage(ctx, s.cfg.BaselinePath, res.Baseline)
	if err != nil {
		return store.State{}, err
	}

	finished := s.cfg.Now()
	st := store.State{
		Table:          s.Table(),
		LastUpdate:     finished,
		LastBatch:      res.BatchID,
		RowCount:       res.Baseline.Len(),
		ColumnCount:    res.Baseline.Schema().Len(),
		Fingerprint:    table.Fingerprint(res.Baseline),
		LastChanges:    changeSummary(res.Report),
		LastValidation: validationSummary(res.Validation),
	}
	run := s.runRecord(res, batch, started, store.StatusCommitted)
	run.FinishedAt = finished
	if err := s.cfg.Store.Commit(ctx, store.Commit{State: st, Run: run}); err != nil {
		if derr := staged.Discard(); derr != nil {
			s.log.Error("failed to discard staged baseline", zap.String("path", staged.TempPath()), zap.Error(derr))
		}
		return store.State{}, err
	}
	if err := staged.Publish(); err != nil {
		return store.State{}, err
	}
	return s.cfg.Store.LoadState(ctx, s.Table())
}

func (s *Syncer) runRecord(res *engine.Result, batch engine.Batch, started time.Time, status string) store.Run {
	run := store.Run{
		ID:         res.RunID,
		Table:      s.Table(),
		BatchID:    res.BatchID,
		Status:     status,
		Sources:    batch.Sources(),
		StartedAt:  started,
		FinishedAt: s.cfg.Now(),
	}
	if rep := res.Report; rep != nil {
		run.BaselineRows = rep.BaselineRows
		run.NextRows = rep.NextRows
		run.Changes = changeSummary(rep)
	}
	return run
}

func (s *Syncer) record(ctx context.Context, run store.Run) error {
	run.Table = s.Table()
	return s.cfg.Store.RecordRun(ctx, run)
}

func changeSummary(rep *engine.ChangeReport) store.ChangeSummary {
	c := rep.Counts
	return store.ChangeSummary{
		New:             c.New,
		Updated:         c.Updated,
		SkippedOutdated: c.SkippedOutdated,
		Unchanged:       c.Unchanged,
		Dropped:         c.Dropped,
		Filtered:        c.Filtered,
		Superseded:      c.Superseded,
		Purged:          rep.Purged,
		DateRange:       engine.DateRange(rep),
	}
}

func validationSummary(v *validate.Report) store.ValidationSummary {
	if v == nil {
		return store.ValidationSummary{}
	}
	return store.ValidationSummary{HasIssues: v.HasIssues(), Checks: v.Counts()}
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
