package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/config"
	"github.com/roach88/tablesync/internal/ingest"
	"github.com/roach88/tablesync/internal/logging"
	"github.com/roach88/tablesync/internal/metrics"
	"github.com/roach88/tablesync/internal/pipeline"
	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/validate"
)

// env is the runtime a data command works in: settings, logger, state
// store and metrics registry. Close releases it.
type env struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *store.Store
	registry *prometheus.Registry
	tables   *LoadResult
}

// openEnv loads settings and table definitions, then opens the store.
// Errors come back as ExitErrors already reported through f.
func openEnv(opts *RootOptions, f *OutputFormatter) (*env, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeConfig, err.Error())
	}

	tables, loadErrs := LoadTables(cfg.Specs, LoadModeFailFast)
	if len(loadErrs) > 0 {
		return nil, failLoad(f, loadErrs[0])
	}
	f.Debugf("Loaded %d table(s) from %s", len(tables.Tables), cfg.Specs)

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeConfig, fmt.Sprintf("building logger: %v", err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("creating data dir: %v", err))
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeGeneric, fmt.Sprintf("opening state database: %v", err))
	}

	return &env{
		cfg:      cfg,
		log:      log,
		store:    st,
		registry: prometheus.NewRegistry(),
		tables:   tables,
	}, nil
}

// syncer binds the named table and builds its Syncer.
func (e *env) syncer(name string, f *OutputFormatter) (*pipeline.Syncer, error) {
	spec, err := e.tables.FindTable(name)
	if err != nil {
		return nil, failLoad(f, err)
	}
	def, err := compiler.Bind(spec)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
	}
	s, err := pipeline.New(pipeline.Config{
		Definition:   def,
		BaselinePath: e.cfg.BaselinePath(def.Name(), spec.Baseline),
		Store:        e.store,
		ReportDir:    e.cfg.ReportDir,
		Workers:      e.cfg.Workers,
		Logger:       e.log,
		Metrics:      metrics.New(e.registry, def.Name()),
	})
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
	}
	return s, nil
}

// allowList reads the configured allow-list, or returns nil when none is
// configured.
func (e *env) allowList(f *OutputFormatter) (validate.AllowList, error) {
	al := e.cfg.AllowList
	if al.Path == "" {
		return nil, nil
	}
	values, err := ingest.LoadAllowList(al.Path, al.Column)
	if err != nil {
		return nil, fail(f, ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("reading allow-list: %v", err))
	}
	f.Debugf("Allow-list: %d identities from %s", len(values), al.Path)
	return validate.NewAllowList(values...), nil
}

// Close exports metrics when configured, then closes the store.
func (e *env) Close() error {
	var errs []error
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics: %w", err))
		}
	}
	errs = append(errs, e.store.Close())
	_ = e.log.Sync()
	return errors.Join(errs...)
}

// fail reports an error through f and returns the matching ExitError.
func fail(f *OutputFormatter, exit int, code, message string) error {
	_ = f.Fail(code, message, nil)
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}

func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return fail(f, ExitCommandError, loadErr.Code, loadErr.Message)
	}
	return fail(f, ExitCommandError, ErrCodeGeneric, err.Error())
}
