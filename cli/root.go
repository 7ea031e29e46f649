/*
Package cli implements the hrstore operator command.

COMMANDS:
  hrstore init                      write an empty artifact (refuses to overwrite)
  hrstore check                     load, print metadata and collection counts
  hrstore employees [filters]       list employees
  hrstore dashboard employee <id>   one employee's dashboard
  hrstore dashboard hr              organization-wide dashboard
  hrstore backup [--dir | --s3-*]   copy the persisted artifact elsewhere

GLOBAL FLAGS:
  --config   YAML config file (default $HRSTORE_CONFIG)
  --data     artifact path, overrides config `path`
  --backend  file | sqlite, overrides config `backend`
  --format   text | json
  --verbose  development logging at debug level

Flags win over the config file; the config file wins over defaults.
*/
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/hrstore/config"
	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/generic/store"
	"github.com/warp/hrstore/hr"
	"github.com/warp/hrstore/store/sqlite"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	DataPath   string
	Backend    string
	Format     string
	Verbose    bool

	// Logger, when set, replaces the logger built from the flags.
	Logger *zap.Logger
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand returns the hrstore command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hrstore",
		Short:         "Inspect and maintain the HR document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default $"+config.EnvFile+")")
	flags.StringVar(&opts.DataPath, "data", "", "artifact path")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (file|sqlite)")
	flags.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newEmployeesCommand(opts))
	cmd.AddCommand(newDashboardCommand(opts))
	cmd.AddCommand(newBackupCommand(opts))
	return cmd
}

// =============================================================================
// ENVIRONMENT - config, logger and backend resolved from the flags
// =============================================================================

type env struct {
	cfg     config.Config
	log     *zap.Logger
	backend generic.Backend
	seed    func(ctx context.Context, data []byte) error
	close   func() error
}

func (o *RootOptions) env() (*env, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.DataPath != "" {
		cfg.Path = o.DataPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}

	log, err := o.logger(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build logger", err)
	}

	e := &env{cfg: cfg, log: log, close: func() error { return nil }}
	path := cfg.DataPath()
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite.New(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open sqlite", err)
		}
		e.backend, e.seed, e.close = db, db.Seed, db.Close
	default:
		f := store.NewFile(path)
		e.backend, e.seed = f, f.Seed
	}
	log.Debug("environment ready", zap.String("backend", cfg.Backend), zap.String("path", path))
	return e, nil
}

func (o *RootOptions) logger(cfg config.Config) (*zap.Logger, error) {
	if o.Logger != nil {
		return o.Logger, nil
	}
	if o.Verbose {
		return zap.NewDevelopment()
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// open returns the hr store over the configured backend.
func (e *env) open() *hr.Store {
	return hr.Open(e.backend, generic.WithLogger(e.log.Named("store")))
}

// withEnv resolves the environment, runs fn and releases the backend.
func withEnv(opts *RootOptions, fn func(e *env) error) error {
	e, err := opts.env()
	if err != nil {
		return err
	}
	defer func() {
		_ = e.log.Sync()
		if err := e.close(); err != nil {
			e.log.Warn("close backend", zap.Error(err))
		}
	}()
	return fn(e)
}

// loadError maps store load failures to exit codes.
func loadError(err error) error {
	if generic.IsFatal(err) {
		return WrapExitError(ExitFailure, "store unusable", err)
	}
	return err
}
