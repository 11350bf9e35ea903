package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tablesync/internal/metrics"
	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

// Config defines one logical table and how batches are applied to it.
type Config struct {
	Schema  *table.Schema
	Key     *table.KeySpec
	Recency string
	// Ignore lists columns left out of field diffs, such as a column that
	// records which file a row came from.
	Ignore      []string
	DateFormats []string
	Exclude     map[string][]string
	// Validation configures the advisory checks; nil skips validation.
	Validation *validate.Config
	Workers    int
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	RunIDs     RunIDGenerator
}

// Committer persists a finished run. It is called once, after
// validation, with a context that is no longer cancellable.
type Committer interface {
	Commit(ctx context.Context, res *Result) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(ctx context.Context, res *Result) error

// Commit calls f.
func (f CommitFunc) Commit(ctx context.Context, res *Result) error { return f(ctx, res) }

// Input is what a run consumes.
type Input struct {
	// Baseline is the current table; nil means empty.
	Baseline *table.Table
	Batch    Batch
	// AllowList exempts identities from the blank catalogue check.
	AllowList validate.AllowList
}

// Result is what a run produces. On failure Phase is PhaseFailed,
// FailedIn names the phase that raised the error and Baseline is nil:
// a table the committer did not persist is never handed back. Report
// still describes the run as far as it got.
type Result struct {
	RunID      string
	BatchID    string
	Phase      Phase
	FailedIn   Phase
	Baseline   *table.Table
	Report     *ChangeReport
	Merge      MergeStats
	Validation *validate.Report
	Durations  map[Phase]time.Duration
	DryRun     bool
}

// Engine applies incremental batches to a baseline table.
//
// The engine is stateless between runs: every Run takes the current
// baseline and returns a new one, so a single Engine may serve runs
// against different baselines. Serializing runs against the same
// baseline is the caller's job.
type Engine struct {
	cfg       Config
	norm      *normalize.Normalizer
	differ    *Differ
	validator *validate.Validator
	recency   int
	logger    *zap.Logger
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Schema == nil || cfg.Key == nil {
		return nil, fmt.Errorf("engine: schema and key are required")
	}
	recency, ok := cfg.Schema.Index(cfg.Recency)
	if !ok {
		return nil, fmt.Errorf("engine: recency column %q not in schema", cfg.Recency)
	}
	if cfg.Key.Contains(recency) {
		return nil, fmt.Errorf("engine: recency column %q cannot be part of the key", cfg.Recency)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RunIDs == nil {
		cfg.RunIDs = UUIDv7Generator{}
	}

	norm, err := normalize.New(cfg.Schema, cfg.Key, cfg.Recency, normalize.Options{
		DateFormats: cfg.DateFormats,
		Exclude:     cfg.Exclude,
		Workers:     cfg.Workers,
		Logger:      cfg.Logger.Named("normalize"),
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	ignore := make([]int, 0, len(cfg.Ignore))
	for _, name := range cfg.Ignore {
		p, ok := cfg.Schema.Index(name)
		if !ok {
			return nil, fmt.Errorf("engine: ignored column %q not in schema", name)
		}
		ignore = append(ignore, p)
	}

	e := &Engine{
		cfg:     cfg,
		norm:    norm,
		differ:  NewDiffer(cfg.Schema, cfg.Key, recency, ignore),
		recency: recency,
		logger:  cfg.Logger,
	}
	if cfg.Validation != nil {
		v, err := validate.New(cfg.Schema, *cfg.Validation, cfg.Logger.Named("validate"))
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.validator = v
	}
	if e.cfg.Workers <= 0 {
		e.cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// Schema returns the table schema.
func (e *Engine) Schema() *table.Schema { return e.cfg.Schema }

// KeySpec returns the composite key.
func (e *Engine) KeySpec() *table.KeySpec { return e.cfg.Key }

// Validator returns the configured validator, or nil.
func (e *Engine) Validator() *validate.Validator { return e.validator }

// Run applies a batch. A nil committer makes the run a dry run that
// stops after validation.
//
// ctx is honoured until merging starts; from then on the run completes.
// On error the returned Result is still populated up to the failed phase.
func (e *Engine) Run(ctx context.Context, in Input, c Committer) (*Result, error) {
	r := &run{
		e:   e,
		res: &Result{RunID: e.cfg.RunIDs.Generate(), BatchID: in.Batch.ID(), Phase: PhaseIdle, DryRun: c == nil, Durations: map[Phase]time.Duration{}},
		log: e.logger,
	}
	r.log = r.log.With(zap.String("run_id", r.res.RunID), zap.String("batch_id", shortID(r.res.BatchID)))
	r.res.Report = &ChangeReport{RunID: r.res.RunID, BatchID: r.res.BatchID, Sources: in.Batch.Sources()}

	err := r.execute(ctx, in, c)
	if err != nil {
		r.res.FailedIn = r.res.Phase
		r.res.Phase = PhaseFailed
		r.res.Baseline = nil
		r.log.Error("run failed", zap.Stringer("phase", r.res.FailedIn), zap.Error(err))
		e.cfg.Metrics.RunFinished("failed")
		return r.res, err
	}

	status := "committed"
	if r.res.DryRun {
		status = "dry_run"
	}
	e.record(r.res)
	e.cfg.Metrics.RunFinished(status)
	counts := r.res.Report.Counts
	r.log.Info("run finished",
		zap.String("status", status),
		zap.Int("new", counts.New),
		zap.Int("updated", counts.Updated),
		zap.Int("skipped_outdated", counts.SkippedOutdated),
		zap.Int("unchanged", counts.Unchanged),
		zap.Int("rows", r.res.Baseline.Len()))
	return r.res, nil
}

type run struct {
	e   *Engine
	res *Result
	log *zap.Logger
}

// enter moves to the next phase, checking cancellation while it is
// still allowed.
func (r *run) enter(ctx context.Context, p Phase) error {
	if p.Cancellable() {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	r.res.Phase = p
	return nil
}

// timed runs fn inside phase p and records its duration.
func (r *run) timed(ctx context.Context, p Phase, fn func() error) error {
	if err := r.enter(ctx, p); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	r.res.Durations[p] = d
	r.e.cfg.Metrics.ObservePhase(p.String(), d)
	r.log.Debug("phase done", zap.Stringer("phase", p), zap.Duration("took", d))
	return err
}

func (r *run) execute(ctx context.Context, in Input, c Committer) error {
	e, rep := r.e, r.res.Report

	base := in.Baseline
	if base == nil {
		base = table.Empty(e.cfg.Schema, e.cfg.Key)
	}
	if err := e.checkBaseline(base); err != nil {
		return err
	}
	rep.BaselineRows = base.Len()

	var (
		files   []normalize.File
		cands   []Candidate
		winners []Candidate
		groups  []DuplicateGroup
		records []ChangeRecord
		next    *table.Table
	)

	err := r.timed(ctx, PhaseNormalizing, func() error {
		var err error
		files, err = e.norm.Normalize(ctx, in.Batch)
		if err != nil {
			return inputError(err)
		}
		cands, rep.Dropped = e.stamp(files)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.timed(ctx, PhaseDeduplicating, func() error {
		winners, groups = Deduplicate(cands)
		rep.Duplicates = groups
		return nil
	})
	if err != nil {
		return err
	}

	var decisions []Decision
	err = r.timed(ctx, PhaseFiltering, func() error {
		var err error
		decisions, err = Filter(ctx, base, winners, e.recency, e.cfg.Workers)
		return err
	})
	if err != nil {
		return err
	}

	err = r.timed(ctx, PhaseDiffing, func() error {
		var err error
		records, err = Track(ctx, decisions, e.differ, e.cfg.Workers)
		if err != nil {
			return err
		}
		rep.Records = records
		summarize(rep, files, cands, groups, records)
		return nil
	})
	if err != nil {
		return err
	}

	err = r.timed(ctx, PhaseMerging, func() error {
		var err error
		next, r.res.Merge, err = Merge(base, records, e.norm.Exclusions())
		if err != nil {
			return err
		}
		rep.Purged = r.res.Merge.Purged
		rep.NextRows = next.Len()
		r.res.Baseline = next
		return nil
	})
	if err != nil {
		return err
	}

	// Past this point the run completes even if ctx is cancelled.
	ctx = context.WithoutCancel(ctx)

	err = r.timed(ctx, PhaseValidating, func() error {
		if e.validator != nil {
			r.res.Validation = e.validator.Validate(next, in.AllowList)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c == nil {
		return nil
	}
	err = r.timed(ctx, PhaseCommitted, func() error {
		if err := c.Commit(ctx, r.res); err != nil {
			var se *SyncError
			if errors.As(err, &se) {
				return err
			}
			return &SyncError{Code: ErrCodeCommitFailed, Phase: PhaseCommitted, Message: "commit failed", Err: err}
		}
		return nil
	})
	return err
}

// checkBaseline rejects a baseline built for a different table definition.
func (e *Engine) checkBaseline(base *table.Table) error {
	if !base.Schema().Equal(e.cfg.Schema) {
		return &SyncError{Code: ErrCodeInvalidInput, Phase: PhaseIdle, Message: "baseline schema does not match table definition"}
	}
	got, want := base.KeySpec().Columns(), e.cfg.Key.Columns()
	if !slices.Equal(got, want) {
		return &SyncError{Code: ErrCodeInvalidInput, Phase: PhaseIdle,
			Message: fmt.Sprintf("baseline key %v does not match table key %v", got, want)}
	}
	return nil
}

// stamp turns normalized files into seq-ordered candidates: files in
// batch order, rows in physical order.
func (e *Engine) stamp(files []normalize.File) ([]Candidate, []DroppedRow) {
	clock := NewClock()
	var (
		cands   []Candidate
		dropped []DroppedRow
	)
	for _, f := range files {
		for i, row := range f.Rows {
			cands = append(cands, Candidate{
				Key:     e.cfg.Key.Key(row),
				Row:     row,
				Recency: row[e.recency],
				Seq:     clock.Next(),
				File:    f.Index,
				Source:  f.Source,
				Line:    f.Lines[i],
			})
		}
		for _, d := range f.Dropped {
			dropped = append(dropped, DroppedRow{
				Source: d.Source,
				Row:    d.Row,
				Err: &SyncError{
					Code:    ErrCodeInputRow,
					Phase:   PhaseNormalizing,
					Message: "row dropped",
					Source:  d.Source,
					Row:     d.Row,
					Err:     d.Err,
				},
			})
		}
	}
	return cands, dropped
}

// record pushes a successful run's tallies to metrics.
func (e *Engine) record(res *Result) {
	m := e.cfg.Metrics
	if m == nil {
		return
	}
	c := res.Report.Counts
	m.AddRows(ClassNew.String(), c.New)
	m.AddRows(ClassUpdated.String(), c.Updated)
	m.AddRows(ClassSkippedOutdated.String(), c.SkippedOutdated)
	m.AddRows(ClassUnchanged.String(), c.Unchanged)
	m.AddRows("dropped", c.Dropped)
	m.AddRows("filtered", c.Filtered)
	m.AddRows("superseded", c.Superseded)
	m.SetBaselineRows(res.Baseline.Len())
	if res.Validation != nil {
		for check, n := range res.Validation.Counts() {
			m.SetValidationIssues(check, n)
		}
	}
}

// inputError maps normalizer failures onto sync errors.
func inputError(err error) error {
	var he *normalize.HeaderError
	if errors.As(err, &he) {
		return &SyncError{Code: ErrCodeInvalidInput, Phase: PhaseNormalizing, Message: "extract header is incomplete", Source: he.Source, Err: err}
	}
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
