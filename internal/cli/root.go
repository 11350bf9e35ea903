package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/tablesync/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Viper carries flag bindings from the root command. Commands built
	// on their own get a fresh instance on first use.
	Viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// settingFlags maps persistent flags onto config keys.
var settingFlags = map[string]string{
	"specs":      "specs",
	"data-dir":   "data_dir",
	"db":         "db",
	"workers":    "workers",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// NewRootCommand creates the root command for the tablesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Viper: config.New()}

	cmd := &cobra.Command{
		Use:   "tablesync",
		Short: "tablesync - incremental table synchronization",
		Long: `Apply batches of spreadsheet extracts to a keyed baseline table.

Each batch is deduplicated, merged by recency, validated and committed
atomically. Table layouts are defined in CUE; runtime settings come from
tablesync.yaml, TABLESYNC_* environment variables and flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+config.DefaultFileName+")")
	pf.String("specs", "", "CUE file or directory with table definitions")
	pf.String("data-dir", "", "directory holding baselines and state")
	pf.String("db", "", "state database path (default <data-dir>/tablesync.db)")
	pf.Int("workers", 0, "parallel workers (default GOMAXPROCS)")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.String("log-format", "", "log format (console|json)")

	for flag, key := range settingFlags {
		// Lookup cannot fail: every flag was registered above.
		_ = opts.Viper.BindPFlag(key, pf.Lookup(flag))
	}

	// Add subcommands
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// LoadConfig resolves runtime settings for a command.
func (o *RootOptions) LoadConfig() (*config.Config, error) {
	if o.Viper == nil {
		o.Viper = config.New()
	}
	cfg, err := config.Load(o.Viper, o.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Log.Verbose = o.Verbose
	return cfg, nil
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
