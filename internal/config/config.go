// Package config loads tablesync runtime settings.
//
// Settings come from, lowest precedence first: built-in defaults, an
// optional YAML file, TABLESYNC_* environment variables and command
// flags bound by the CLI. Table definitions are not settings; they live
// in CUE files under Specs.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roach88/tablesync/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. TABLESYNC_DATA_DIR
// or TABLESYNC_LOG_LEVEL.
const EnvPrefix = "TABLESYNC"

// DefaultFileName is looked up in the working directory when no config
// file is named.
const DefaultFileName = "tablesync.yaml"

// Config holds runtime settings.
type Config struct {
	// Specs is a CUE file or a directory of CUE files defining tables.
	Specs string `mapstructure:"specs"`
	// DataDir holds baselines and, by default, the state database.
	DataDir string `mapstructure:"data_dir"`
	// DB overrides the state database path.
	DB string `mapstructure:"db"`
	// ReportDir receives change reports; empty disables them.
	ReportDir string `mapstructure:"report_dir"`
	Workers   int    `mapstructure:"workers"`

	AllowList AllowListConfig `mapstructure:"allow_list"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       logging.Config  `mapstructure:"log"`
}

// AllowListConfig names the file of identities exempt from the blank
// catalogue check.
type AllowListConfig struct {
	Path   string `mapstructure:"path"`
	Column string `mapstructure:"column"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Textfile, when set, receives the run metrics in Prometheus text
	// format after each command, for a node exporter textfile collector.
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("specs", "tables")
	v.SetDefault("data_dir", "data")
	v.SetDefault("db", "")
	v.SetDefault("report_dir", "")
	v.SetDefault("workers", 0)
	v.SetDefault("allow_list.path", "")
	v.SetDefault("allow_list.column", "PMM Item Number")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads the config file into v and decodes the result. An empty
// path looks for DefaultFileName in the working directory and tolerates
// its absence; a named file must exist.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, filepath.Ext(DefaultFileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Specs) == "" {
		errs = append(errs, errors.New("specs must name a CUE file or directory"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.AllowList.Path != "" && strings.TrimSpace(c.AllowList.Column) == "" {
		errs = append(errs, errors.New("allow_list.column is required with allow_list.path"))
	}
	if f := c.Log.Format; f != "" && f != "json" && f != "console" {
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", f))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DBPath returns the state database path.
func (c *Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.DataDir, "tablesync.db")
}

// BaselinePath resolves a table's baseline file. Relative names are
// taken from DataDir; an empty name defaults to <table>.parquet.
func (c *Config) BaselinePath(table, name string) string {
	if name == "" {
		name = table + ".parquet"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
