package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/engine"
	"github.com/roach88/tablesync/internal/ingest"
	"github.com/roach88/tablesync/internal/pipeline"
	"github.com/roach88/tablesync/internal/report"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/validate"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	Force     bool
	DryRun    bool
	ReportDir string
}

// ApplySummary is the apply command's result.
type ApplySummary struct {
	Table            string         `json:"table"`
	Status           string         `json:"status"`
	RunID            string         `json:"run_id"`
	BatchID          string         `json:"batch_id"`
	Files            int            `json:"files"`
	Counts           engine.Counts  `json:"counts"`
	Purged           int            `json:"purged"`
	BaselineRows     int            `json:"baseline_rows"`
	NextRows         int            `json:"next_rows"`
	DateRange        string         `json:"date_range"`
	ValidationIssues map[string]int `json:"validation_issues,omitempty"`
	Reports          *report.Paths  `json:"reports,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{}

	cmd := &cobra.Command{
		Use:   "apply <table> <file>...",
		Short: "Apply a batch of extract files to a table",
		Long: `Apply one batch of .xlsx or .csv extracts to the table's baseline.

All files form a single batch: rows are normalized, deduplicated by key,
merged by recency and validated, then the new baseline and the sync state
are committed. A batch whose files were applied before is refused unless
--force is given.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, rootOpts, opts, args[0], args[1:])
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "re-apply a batch that was already applied")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "compute changes without writing baseline or state")
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "write Markdown and xlsx reports to this directory")

	return cmd
}

func runApply(cmd *cobra.Command, rootOpts *RootOptions, opts *ApplyOptions, tableName string, paths []string) error {
	f := rootOpts.formatter(cmd)

	e, err := openEnv(rootOpts, f)
	if err != nil {
		return err
	}
	defer e.Close()

	if opts.ReportDir != "" {
		e.cfg.ReportDir = opts.ReportDir
	}
	syncer, err := e.syncer(tableName, f)
	if err != nil {
		return err
	}
	allow, err := e.allowList(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	files, err := ingest.ReadFiles(ctx, paths)
	if err != nil {
		return fail(f, ExitCommandError, ErrCodeReadFailed, err.Error())
	}
	for _, file := range files {
		f.Debugf("Read %s: %d row(s)", file.Source, len(file.Records))
	}

	out, err := syncer.Apply(ctx, files, pipeline.Options{
		Force:     opts.Force,
		DryRun:    opts.DryRun,
		AllowList: allow,
	})
	if err != nil {
		return applyFailed(f, out, err)
	}

	summary := summarize(syncer.Table(), len(files), out)
	if f.JSON() {
		return f.Emit(summary, summary.RunID)
	}
	printApplySummary(f, summary)
	return nil
}

func summarize(tableName string, files int, out *pipeline.Outcome) ApplySummary {
	s := ApplySummary{
		Table:   tableName,
		Status:  out.Status,
		RunID:   out.RunID,
		BatchID: out.BatchID,
		Files:   files,
		Reports: out.Reports,
	}
	if res := out.Result; res != nil {
		if rep := res.Report; rep != nil {
			s.Counts = rep.Counts
			s.Purged = rep.Purged
			s.BaselineRows = rep.BaselineRows
			s.NextRows = rep.NextRows
			s.DateRange = engine.DateRange(rep)
		}
		if v := res.Validation; v != nil && v.HasIssues() {
			s.ValidationIssues = v.Counts()
		}
	}
	return s
}

func printApplySummary(f *OutputFormatter, s ApplySummary) {
	verb := "Applied"
	if s.Status != store.StatusCommitted {
		verb = "Dry run of"
	}
	f.Printf("✓ %s batch %s to %s (%d file(s), run %s)\n", verb, shortID(s.BatchID), s.Table, s.Files, s.RunID)
	f.Printf("  rows:      %d -> %d\n", s.BaselineRows, s.NextRows)
	f.Printf("  new:       %d\n", s.Counts.New)
	f.Printf("  updated:   %d\n", s.Counts.Updated)
	f.Printf("  unchanged: %d\n", s.Counts.Unchanged)
	f.Printf("  outdated:  %d\n", s.Counts.SkippedOutdated)
	if s.Counts.Superseded > 0 {
		f.Printf("  duplicate versions superseded: %d\n", s.Counts.Superseded)
	}
	if s.Counts.Dropped > 0 {
		f.Printf("  dropped:   %d\n", s.Counts.Dropped)
	}
	if s.Counts.Filtered+s.Purged > 0 {
		f.Printf("  excluded:  %d filtered, %d purged\n", s.Counts.Filtered, s.Purged)
	}
	f.Printf("  dates:     %s\n", s.DateRange)
	if len(s.ValidationIssues) > 0 {
		var parts []string
		for _, check := range []string{validate.CheckRelationship, validate.CheckBlankCatalogue, validate.CheckConsistency} {
			if n, ok := s.ValidationIssues[check]; ok && n > 0 {
				parts = append(parts, fmt.Sprintf("%s=%d", check, n))
			}
		}
		f.Printf("  validation issues: %s\n", strings.Join(parts, " "))
	}
	if s.Reports != nil {
		f.Printf("  report:    %s\n", s.Reports.Markdown)
		f.Printf("  workbook:  %s\n", s.Reports.Workbook)
	}
}

// applyFailed reports a failed Apply. A refused batch exits with
// ExitFailure; everything else is a command error.
func applyFailed(f *OutputFormatter, out *pipeline.Outcome, err error) error {
	code := ErrCodeGeneric
	var se *engine.SyncError
	if errors.As(err, &se) {
		code = string(se.Code)
	}

	details := map[string]string{}
	if out != nil {
		if out.BatchID != "" {
			details["batch_id"] = out.BatchID
		}
		if out.RunID != "" {
			details["run_id"] = out.RunID
		}
	}

	_ = f.Fail(code, err.Error(), details)
	if engine.IsAlreadyApplied(err) {
		return WrapExitError(ExitFailure, "batch refused", err)
	}
	return WrapExitError(ExitCommandError, "apply failed", err)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
