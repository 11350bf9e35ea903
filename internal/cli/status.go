package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tablesync/internal/pipeline"
	"github.com/roach88/tablesync/internal/store"
)

// StatusResult is the status command's result.
type StatusResult struct {
	Tables  []*pipeline.Status `json:"tables"`
	History []store.Run        `json:"history,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "status [table]",
		Short: "Show sync state of defined tables",
		Long: `Show each table's last commit, baseline file and latest run.

With a table name, --history also lists that table's most recent runs.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts, args, history)
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "list the N most recent runs of the table")

	return cmd
}

func runStatus(cmd *cobra.Command, rootOpts *RootOptions, args []string, history int) error {
	f := rootOpts.formatter(cmd)

	e, err := openEnv(rootOpts, f)
	if err != nil {
		return err
	}
	defer e.Close()

	names := args
	if len(names) == 0 {
		for _, t := range e.tables.Tables {
			names = append(names, t.Name)
		}
	}

	ctx := cmd.Context()
	var result StatusResult
	for _, name := range names {
		syncer, err := e.syncer(name, f)
		if err != nil {
			return err
		}
		st, err := syncer.Status(ctx)
		if err != nil {
			return fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
		}
		result.Tables = append(result.Tables, st)

		if len(args) == 1 && history > 0 {
			if result.History, err = syncer.History(ctx, history); err != nil {
				return fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
			}
		}
	}

	if f.JSON() {
		return f.Emit(result, "")
	}
	for _, st := range result.Tables {
		printStatus(f, st)
	}
	if len(result.History) > 0 {
		f.Printf("\nRecent runs:\n")
		for _, run := range result.History {
			f.Printf("  %s  %-15s  batch %s  %d -> %d rows\n",
				run.StartedAt.Local().Format(time.DateTime), run.Status, shortID(run.BatchID), run.BaselineRows, run.NextRows)
		}
	}
	return nil
}

func printStatus(f *OutputFormatter, st *pipeline.Status) {
	f.Printf("%s\n", st.Table)
	if !st.State.Exists() {
		f.Printf("  never synced\n")
	} else {
		s := st.State
		f.Printf("  last update:     %s\n", s.LastUpdate.Local().Format(time.DateTime))
		f.Printf("  last batch:      %s\n", shortID(s.LastBatch))
		f.Printf("  rows x columns:  %d x %d\n", s.RowCount, s.ColumnCount)
		f.Printf("  applied batches: %d\n", s.AppliedBatches)
		f.Printf("  last changes:    new=%d updated=%d unchanged=%d outdated=%d (%s)\n",
			s.LastChanges.New, s.LastChanges.Updated, s.LastChanges.Unchanged, s.LastChanges.SkippedOutdated, s.LastChanges.DateRange)
	}
	if st.Baseline != nil {
		f.Printf("  baseline:        %s (%d rows)\n", st.Baseline.Path, st.Baseline.Rows)
	} else {
		f.Printf("  baseline:        none\n")
	}
	if st.LastRun != nil {
		f.Printf("  last run:        %s %s\n", st.LastRun.Status, st.LastRun.ID)
	}
}
