package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/store/memory"
	"github.com/JonMunkholm/catalog/internal/store/postgres"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries what every command needs once the flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	dryRun   bool
	jsonOut  bool
	logLevel string

	cfg     *config.Config
	logger  *slog.Logger
	service *core.Service
	closers []func()
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "error:", describe(err))
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "catalogctl",
		Short: "Import and maintain the service catalog",
		Long: `catalogctl imports spreadsheets and delimited files into the four-level
service catalog (sector, category, subcategory, job) and runs the
catalog maintenance operations.

Each file becomes one category of the target sector, named after the
file. Re-importing the same files is a no-op in skip mode.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().BoolVar(&a.dryRun, "dry-run", false, "run against an empty in-memory store instead of PostgreSQL")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")

	root.AddCommand(
		a.importCommand(),
		a.countsCommand(),
		a.resetCommand(),
		a.relocateCommand(),
		a.duplicatesCommand(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	// Logs go to stderr so --json output stays parseable.
	a.logger = logging.New(a.errOut, level, cfg.Logging.Format)
	return nil
}

// open returns the service, opening the store on first use.
func (a *app) open(ctx context.Context) (*core.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := core.NewService(store, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.service = svc
	return svc, nil
}

func (a *app) openStore(ctx context.Context) (taxonomy.Store, error) {
	if a.dryRun {
		a.logger.Debug("using in-memory store")
		return memory.New(), nil
	}
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, fmt.Errorf("%w (or pass --dry-run)", err)
	}

	pool, err := postgres.NewPool(ctx, a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	store := postgres.New(pool)
	if a.cfg.Database.AutoSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// describe prefers the user message for errors the pipeline knows about.
func describe(err error) string {
	if !core.IsUserFacing(err) {
		return err.Error()
	}
	msg := core.FormatUserError(err)
	var te *taxonomy.Error
	if errors.As(err, &te) {
		return msg + "\n  " + te.Error()
	}
	return msg
}
