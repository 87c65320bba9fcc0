package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"paytrack/internal/app"
	"paytrack/internal/backend"
	"paytrack/internal/config"
	"paytrack/internal/log"
	"paytrack/internal/store"
)

var (
	Version = "dev"
	Commit  = "none"
)

// runtime is what every command works against. It is filled in by the root
// command's pre-run hook.
type runtime struct {
	cfg     *config.Config
	logger  *log.Logger
	store   store.Store
	backend *backend.Backend
	session *app.Session
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
}

type Option func(*runtime)

// WithConfig skips .env and environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(rt *runtime) { rt.cfg = cfg }
}

// WithStore makes the commands use st instead of the configured backend.
func WithStore(st store.Store) Option {
	return func(rt *runtime) { rt.store = st }
}

func WithLogger(l *log.Logger) Option {
	return func(rt *runtime) { rt.logger = l }
}

// WithOutput redirects command output. Errors and import diagnostics go to
// errOut.
func WithOutput(out, errOut io.Writer) Option {
	return func(rt *runtime) {
		rt.out = out
		rt.errOut = errOut
	}
}

func withClock(now func() time.Time) Option {
	return func(rt *runtime) { rt.now = now }
}

// NewRootCmd builds the command tree. The returned close function releases
// the backend and must be called once the command has run.
func NewRootCmd(opts ...Option) (*cobra.Command, func() error) {
	rt := &runtime{out: os.Stdout, errOut: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(rt)
	}

	root := &cobra.Command{
		Use:     "paytrack",
		Version: fmt.Sprintf("%s (%s)", Version, Commit),
		Short:   "Track worked hours and earnings",
		Long: `paytrack keeps a ledger of work days, computes hours and earnings from
clock-in and clock-out times and exports the result as CSV, XLSX or PDF.

Configuration comes from the environment (.env is read when present) and an
optional YAML file named by PAYTRACK_CONFIG. The ledger is kept in SQLite at
SQLITE_DB_PATH (./data/paytrack.db by default). DATA_BACKEND=memory keeps it
in memory only, for trying things out.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: rt.setup,
	}
	root.SetOut(rt.out)
	root.SetErr(rt.errOut)

	root.AddCommand(
		newServeCmd(rt),
		newAddCmd(rt),
		newShowCmd(rt),
		newTotalsCmd(rt),
		newRateCmd(rt),
		newClearCmd(rt),
		newSaveCmd(rt),
		newExportCmd(rt),
		newImportCmd(rt),
		newWatchCmd(rt),
	)
	return root, rt.close
}

func (rt *runtime) setup(cmd *cobra.Command, _ []string) error {
	if rt.cfg == nil {
		LoadEnvFile()
		cfg, err := LoadAndValidateConfig()
		if err != nil {
			return NewCLIError("invalid configuration", "Check the environment variables and PAYTRACK_CONFIG", err)
		}
		rt.cfg = cfg
	}
	if rt.logger == nil {
		logger, err := SetupLogger(rt.cfg)
		if err != nil {
			return NewCLIError("invalid logging configuration", "LOG_LEVEL is one of debug, info, warn, error; LOG_FORMAT is text or json", err)
		}
		rt.logger = logger
	}

	opts := []app.Option{
		app.WithLogger(rt.logger.WithComponent(log.ComponentSession)),
		app.WithDefaultRate(rt.cfg.HourlyRate()),
		app.WithCurrency(rt.cfg.CurrencySymbol),
	}
	if rt.store == nil {
		b, err := backend.New(rt.cfg, rt.logger)
		if err != nil {
			return fmt.Errorf("initialize backend: %w", err)
		}
		rt.backend = b
		rt.store = b.Store
		if b.Notifier != nil {
			opts = append(opts, app.WithNotifier(b.Notifier))
		}
	}

	rt.session = app.NewSession(rt.store, opts...)
	rt.session.Restore(cmd.Context())
	return nil
}

func (rt *runtime) close() error {
	if rt.backend == nil {
		return nil
	}
	err := rt.backend.Close()
	rt.backend = nil
	return err
}

// Run executes the command line in args and releases resources afterwards.
func Run(ctx context.Context, args []string, opts ...Option) error {
	root, closeFn := NewRootCmd(opts...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, closeFn())
}

// Execute runs the command line of the process and returns its exit code.
func Execute() int {
	err := MapError(Run(context.Background(), os.Args[1:]))
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Hint != "" {
			fmt.Fprintln(os.Stderr, "Hint:", cliErr.Hint)
		}
		return cliErr.ExitCode
	}
	return 1
}
