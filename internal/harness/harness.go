package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/zap"

	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

// Run executes a scenario and checks its expectations.
//
// The returned error reports problems that stop the scenario from
// running at all: an unreadable definition or a malformed baseline.
// Expectation mismatches, including unexpected engine errors, are
// collected in Result.Errors.
func Run(s *Scenario) (*Result, error) {
	def, err := loadDefinition(s.Spec, s.Table)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(s.Batches))
	for i := range ids {
		ids[i] = fmt.Sprintf("run-%d", i+1)
	}
	eng, err := engine.New(engine.Config{
		Schema:      def.Schema,
		Key:         def.Key,
		Recency:     def.Spec.Recency,
		Ignore:      def.Spec.Ignore,
		DateFormats: def.Spec.DateFormats,
		Exclude:     def.Spec.Exclude,
		Validation:  def.Spec.Validation,
		Workers:     1,
		Logger:      zap.NewNop(),
		RunIDs:      engine.NewFixedGenerator(ids...),
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	base, err := buildBaseline(def, s.Baseline)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	result := NewResult()
	ctx := context.Background()
	for i, step := range s.Batches {
		in := engine.Input{
			Baseline:  base,
			Batch:     batchOf(step),
			AllowList: validate.NewAllowList(step.AllowList...),
		}

		var next *table.Table
		var committer engine.Committer
		if !step.DryRun {
			committer = engine.CommitFunc(func(_ context.Context, res *engine.Result) error {
				next = res.Baseline
				return nil
			})
		}

		res, runErr := eng.Run(ctx, in, committer)
		br := summarize(step, res, runErr)
		result.Batches = append(result.Batches, br)

		label := step.Name
		if label == "" {
			label = fmt.Sprintf("batches[%d]", i)
		}
		for _, msg := range checkBatch(step.Expect, br, runErr) {
			result.AddError(label + ": " + msg)
		}
		if next != nil {
			base = next
		}
	}

	result.Final = snapshot(base)
	for _, msg := range checkFinal(s.Final, base) {
		result.AddError("final: " + msg)
	}
	return result, nil
}

// loadDefinition compiles and binds one table of a CUE file.
func loadDefinition(path, name string) (*compiler.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	tv := v.LookupPath(cue.ParsePath("table." + name))
	if !tv.Exists() {
		return nil, fmt.Errorf("table %q not defined in %s", name, path)
	}
	spec, err := compiler.CompileTable(tv)
	if err != nil {
		return nil, err
	}
	return compiler.Bind(spec)
}

// buildBaseline types the baseline sheet with the table's own date
// formats. Exclusion rules do not apply to the starting baseline.
func buildBaseline(def *compiler.Definition, sheet *Sheet) (*table.Table, error) {
	if sheet == nil {
		return table.Empty(def.Schema, def.Key), nil
	}
	n, err := normalize.New(def.Schema, def.Key, def.Spec.Recency, normalize.Options{
		DateFormats: def.Spec.DateFormats,
		Workers:     1,
	})
	if err != nil {
		return nil, err
	}
	f, err := n.NormalizeFile(0, rawFile("baseline", *sheet))
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	if len(f.Dropped) > 0 {
		return nil, fmt.Errorf("baseline: row %d: %w", f.Dropped[0].Row, f.Dropped[0].Err)
	}
	return table.New(def.Schema, def.Key, f.Rows)
}

func batchOf(step BatchStep) engine.Batch {
	b := make(engine.Batch, len(step.Files))
	for i, f := range step.Files {
		b[i] = rawFile(f.Source, f.Sheet)
	}
	return b
}

func rawFile(source string, s Sheet) normalize.RawFile {
	records := make([][]any, len(s.Rows))
	for i, row := range s.Rows {
		rec := make([]any, len(s.Header))
		for j, cell := range row {
			if cell != "" {
				rec[j] = cell
			}
		}
		records[i] = rec
	}
	return normalize.RawFile{Source: source, Header: s.Header, Records: records}
}

func summarize(step BatchStep, res *engine.Result, runErr error) BatchResult {
	br := BatchResult{Name: step.Name, RunID: res.RunID, Records: []RecordSnapshot{}}
	switch {
	case runErr != nil:
		br.Status = "failed"
		br.Error = errorCode(runErr)
	case res.DryRun:
		br.Status = "dry_run"
	default:
		br.Status = "committed"
	}

	rep := res.Report
	br.report = rep
	if rep == nil {
		return br
	}
	br.Counts = rep.Counts
	br.Purged = rep.Purged
	br.Rows = rep.NextRows
	br.DateRange = engine.DateRange(rep)
	br.Duplicates = len(rep.Duplicates)
	for _, rec := range rep.Records {
		rs := RecordSnapshot{
			Key:    rec.Key.String(),
			Class:  rec.Class.String(),
			Source: rec.Source,
			Line:   rec.Line,
		}
		for _, ch := range rec.Changes {
			rs.Changes = append(rs.Changes, fmt.Sprintf("%s: %s -> %s", ch.Field, table.Display(ch.Old), table.Display(ch.New)))
		}
		br.Records = append(br.Records, rs)
	}
	if v := res.Validation; v != nil {
		br.Validation = v.Counts()
	}
	return br
}

func errorCode(err error) string {
	var se *engine.SyncError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return err.Error()
}

func snapshot(t *table.Table) TableSnapshot {
	s := TableSnapshot{Columns: t.Schema().Names(), Rows: [][]string{}}
	for _, row := range t.All() {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = table.Display(v)
		}
		s.Rows = append(s.Rows, cells)
	}
	return s
}
