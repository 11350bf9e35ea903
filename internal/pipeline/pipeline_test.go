package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/baseline"
	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/testutil"
	"github.com/roach88/tablesync/internal/validate"
)

type fixture struct {
	dir    string
	store  *store.Store
	syncer *Syncer
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	def, err := compiler.Bind(testutil.ItemPriceSpec())
	require.NoError(t, err)

	clock := testutil.NewDeterministicClock(time.Date(2025, 11, 12, 8, 0, 0, 0, time.UTC))
	cfg := Config{
		Definition:   def,
		BaselinePath: filepath.Join(dir, "item_price.parquet"),
		Store:        st,
		Workers:      2,
		Now:          clock.Now,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return &fixture{dir: dir, store: st, syncer: s}
}

func item(id, date, price string) testutil.Item {
	return testutil.Item{
		Item: id, Acct: "10-200", Vendor: "V01",
		Updated:  date,
		Contract: "C-1", Catalogue: "CAT-" + id, Seq: "1",
		VendorName: "Acme", Price: price,
	}
}

func extract(source string, items ...testutil.Item) normalize.RawFile {
	for i := range items {
		items[i].Source = source
	}
	return normalize.RawFile{Source: source, Header: testutil.ItemHeader(), Records: testutil.Records(items...)}
}

func TestNewRequiresWiring(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestApplyCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"), item("1002", "2025-11-10", "4")),
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, store.StatusCommitted, out.Status)
	assert.Equal(t, 2, out.Result.Report.Counts.New)
	assert.Equal(t, 2, out.State.RowCount)
	assert.Equal(t, 12, out.State.ColumnCount)
	assert.Equal(t, 1, out.State.AppliedBatches)
	assert.Equal(t, out.BatchID, out.State.LastBatch)
	assert.Equal(t, "2025-11-10", out.State.LastChanges.DateRange)
	assert.Nil(t, out.Reports)

	applied, err := f.store.IsApplied(ctx, "item_price", out.BatchID)
	require.NoError(t, err)
	assert.True(t, applied)

	info, err := baseline.Stat(filepath.Join(f.dir, "item_price.parquet"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Rows)
}

func TestApplySecondBatchUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"), item("1002", "2025-11-10", "4")),
	}, Options{})
	require.NoError(t, err)

	out, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_2.xlsx", item("1001", "2025-11-11", "11"), item("1002", "2025-11-09", "5"), item("1003", "2025-11-11", "1")),
	}, Options{})
	require.NoError(t, err)

	c := out.Result.Report.Counts
	assert.Equal(t, 1, c.New)
	assert.Equal(t, 1, c.Updated)
	assert.Equal(t, 1, c.SkippedOutdated)
	assert.Equal(t, 3, out.State.RowCount)
	assert.Equal(t, 2, out.State.AppliedBatches)
	assert.Equal(t, "2025-11-09~2025-11-11", out.State.LastChanges.DateRange)
}

func TestApplyRefusesAppliedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := []normalize.RawFile{extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"))}

	first, err := f.syncer.Apply(ctx, files, Options{})
	require.NoError(t, err)

	out, err := f.syncer.Apply(ctx, files, Options{})
	require.Error(t, err)
	assert.True(t, engine.IsAlreadyApplied(err))
	assert.Equal(t, store.StatusAlreadyApplied, out.Status)
	assert.Equal(t, first.BatchID, out.BatchID)
	assert.Nil(t, out.Result)

	runs, err := f.syncer.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, store.StatusAlreadyApplied, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
	assert.Equal(t, store.StatusCommitted, runs[1].Status)
}

func TestApplySameFilesFromAnotherDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := func(path string) normalize.RawFile {
		raw := extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"))
		raw.Source = path
		return raw
	}

	_, err := f.syncer.Apply(ctx, []normalize.RawFile{at("/incoming/inc_1.xlsx")}, Options{})
	require.NoError(t, err)

	_, err = f.syncer.Apply(ctx, []normalize.RawFile{at("/archive/inc_1.xlsx")}, Options{})
	assert.True(t, engine.IsAlreadyApplied(err))
}

func TestApplyForceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := []normalize.RawFile{extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"), item("1002", "2025-11-10", "4"))}

	first, err := f.syncer.Apply(ctx, files, Options{})
	require.NoError(t, err)

	out, err := f.syncer.Apply(ctx, files, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, store.StatusCommitted, out.Status)

	c := out.Result.Report.Counts
	assert.Zero(t, c.New)
	assert.Zero(t, c.Updated)
	assert.Equal(t, 2, c.SkippedOutdated, "equal dates never replace the baseline")
	assert.Equal(t, first.State.Fingerprint, out.State.Fingerprint)
	assert.Equal(t, 1, out.State.AppliedBatches)
}

func TestApplyDryRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, store.StatusDryRun, out.Status)
	assert.Equal(t, 1, out.Result.Report.Counts.New)

	_, err = os.Stat(filepath.Join(f.dir, "item_price.parquet"))
	assert.True(t, os.IsNotExist(err))

	st, err := f.store.LoadState(ctx, "item_price")
	require.NoError(t, err)
	assert.False(t, st.Exists())

	applied, err := f.store.IsApplied(ctx, "item_price", out.BatchID)
	require.NoError(t, err)
	assert.False(t, applied, "dry runs never enter the ledger")

	last, ok, err := f.store.LastRun(ctx, "item_price")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.StatusDryRun, last.Status)
	assert.Equal(t, 1, last.Changes.New)
}

func TestApplyFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := normalize.RawFile{Source: "broken.xlsx", Header: []string{testutil.ColItem}, Records: [][]any{{"1001"}}}
	out, err := f.syncer.Apply(ctx, []normalize.RawFile{bad}, Options{})
	require.Error(t, err)
	assert.True(t, engine.IsInvalidInput(err))
	assert.Equal(t, store.StatusFailed, out.Status)

	last, ok, err := f.store.LastRun(ctx, "item_price")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.StatusFailed, last.Status)
	assert.Contains(t, last.Error, "INVALID_INPUT")

	st, err := f.store.LoadState(ctx, "item_price")
	require.NoError(t, err)
	assert.False(t, st.Exists())
}

func TestApplyMissingBaselineWithState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "item_price.parquet")))

	_, err = f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_2.xlsx", item("1002", "2025-11-11", "1")),
	}, Options{})
	require.Error(t, err)
	assert.True(t, engine.IsInvalidInput(err))
}

func TestApplyStateFailureKeepsPriorBaseline(t *testing.T) {
	// run-2 is handed out twice: the dry run records it, so the real run's
	// state write hits the unique run id and fails after the baseline
	// file was written.
	f := newFixture(t, func(c *Config) {
		c.RunIDs = engine.NewFixedGenerator("run-1", "run-2", "run-2", "run-3")
	})
	ctx := context.Background()
	path := filepath.Join(f.dir, "item_price.parquet")

	first, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{})
	require.NoError(t, err)

	second := []normalize.RawFile{
		extract("inc_2.xlsx", item("1001", "2025-11-11", "11"), item("1002", "2025-11-11", "4")),
	}
	preview, err := f.syncer.Apply(ctx, second, Options{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, "run-2", preview.RunID)

	failed, err := f.syncer.Apply(ctx, second, Options{})
	require.Error(t, err)
	assert.True(t, engine.IsCommitError(err))
	assert.Equal(t, store.StatusFailed, failed.Status)
	assert.Nil(t, failed.Result.Baseline)

	info, err := baseline.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.Rows, "prior baseline stays in place")
	def := f.syncer.cfg.Definition
	onDisk, err := baseline.Load(ctx, path, def.Schema, def.Key)
	require.NoError(t, err)
	assert.Equal(t, first.State.Fingerprint, table.Fingerprint(onDisk))

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "staged baseline removed")
	}

	st, err := f.store.LoadState(ctx, "item_price")
	require.NoError(t, err)
	assert.Equal(t, 1, st.RowCount)
	assert.Equal(t, 1, st.AppliedBatches)

	retry, err := f.syncer.Apply(ctx, second, Options{})
	require.NoError(t, err)
	assert.Equal(t, "run-3", retry.RunID)
	assert.Equal(t, preview.Result.Report.Counts.New, retry.Result.Report.Counts.New)
	assert.Equal(t, preview.Result.Report.Counts.Updated, retry.Result.Report.Counts.Updated)
	assert.Equal(t, 1, retry.Result.Report.Counts.New)
	assert.Equal(t, 1, retry.Result.Report.Counts.Updated)
	assert.Equal(t, 2, retry.State.RowCount)
}

func TestApplyRefusesBaselineOutOfStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(f.dir, "item_price.parquet")

	_, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{})
	require.NoError(t, err)

	// Replace the committed file with a baseline the state never recorded.
	require.NoError(t, baseline.Save(ctx, path, testutil.Baseline(item("9999", "2025-11-01", "1"))))

	_, err = f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_2.xlsx", item("1002", "2025-11-11", "1")),
	}, Options{})
	require.Error(t, err)
	assert.True(t, engine.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "does not match committed state")
}

func TestApplyWritesReports(t *testing.T) {
	reports := filepath.Join(t.TempDir(), "reports")
	f := newFixture(t, func(c *Config) { c.ReportDir = reports })

	out, err := f.syncer.Apply(context.Background(), []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{})
	require.NoError(t, err)
	require.NotNil(t, out.Reports)

	assert.FileExists(t, filepath.Join(reports, "item_price_report_2025-11-10.md"))
	assert.FileExists(t, filepath.Join(reports, "item_price_report_2025-11-10.xlsx"))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.syncer.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.State.Exists())
	assert.Nil(t, st.Baseline)
	assert.Nil(t, st.LastRun)

	out, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50")),
	}, Options{})
	require.NoError(t, err)

	st, err = f.syncer.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "item_price", st.Table)
	assert.True(t, st.State.Exists())
	require.NotNil(t, st.Baseline)
	assert.EqualValues(t, 1, st.Baseline.Rows)
	assert.Equal(t, 12, st.Baseline.Columns)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, out.RunID, st.LastRun.ID)
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	blank := item("1002", "2025-11-10", "4")
	blank.Catalogue = ""
	_, err := f.syncer.Apply(ctx, []normalize.RawFile{
		extract("inc_1.xlsx", item("1001", "2025-11-10", "10.50"), blank),
	}, Options{})
	require.NoError(t, err)

	rep, err := f.syncer.Validate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.BlankCatalogue.Count)

	rep, err = f.syncer.Validate(ctx, validate.NewAllowList("1002"))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.BlankCatalogue.Count)
	assert.Equal(t, 1, rep.Allowed)
}

func TestValidateWithoutConfig(t *testing.T) {
	spec := testutil.ItemPriceSpec()
	spec.Validation = nil
	def, err := compiler.Bind(spec)
	require.NoError(t, err)

	f := newFixture(t, func(c *Config) { c.Definition = def })
	_, err = f.syncer.Validate(context.Background(), nil)
	assert.Error(t, err)
}
