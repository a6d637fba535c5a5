package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidx/internal/repositories"
	"github.com/desertthunder/tidx/internal/services"
	"github.com/desertthunder/tidx/internal/shared"
	"github.com/desertthunder/tidx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Configuration is resolved by [Runner.Configure] before any action runs; the database and
// TIDAL services are wired on first use by [Runner.ready].
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db      *sql.DB
	store   *repositories.Store
	creds   *repositories.CredentialRepository
	tokens  *services.TokenManager
	client  *services.TidalClient
	engine  *tasks.SyncEngine
	ownsDB  bool
	browser func(string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		browser:    shared.OpenBrowser,
	}
}

// SetLogger replaces the logger used by the runner and the services it wires afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, songsCommand, playlistsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Configure loads .env and the config file named by --config before any command runs.
//
// A missing config file falls back to the embedded defaults so that `tidx setup` can create one.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config != nil {
		return ctx, nil
	}

	if err := shared.LoadEnvFile(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	path := cmd.String("config")
	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
		config.ApplyEnv()
	default:
		return ctx, err
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.LogLevel))
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	r.config = config
	return ctx, nil
}

// ready opens the database and wires the TIDAL services on first use.
func (r *Runner) ready() error {
	if r.engine != nil {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}

	if err := r.openDatabase(); err != nil {
		return err
	}
	if err := shared.RunMigrations(r.db); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLocalWrite, err)
	}

	r.store = repositories.NewStore(r.db)
	r.creds = repositories.NewCredentialRepository(r.db)

	r.tokens = services.NewTokenManager(r.config.Tidal, r.creds, r.logger)
	opts := []services.ClientOption{}
	if r.httpClient != nil {
		r.tokens.WithHTTPClient(r.httpClient)
		opts = append(opts, services.WithClientHTTP(r.httpClient))
	}

	limiter := services.NewSlidingWindowLimiter(r.config.Limiter.MaxCalls, r.config.Limiter.Period())
	r.client = services.NewTidalClient(r.config, r.tokens, limiter, r.logger, opts...)
	r.engine = tasks.NewSyncEngine(r.client, r.store, r.config.Sync, r.logger)
	return nil
}

func (r *Runner) openDatabase() error {
	if r.db != nil {
		return nil
	}
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLocalWrite, err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	r.db, r.ownsDB = db, true
	return nil
}

// Close releases the database when the runner opened it.
func (r *Runner) Close() error {
	if r.ownsDB && r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain("\n"+format+"\n", args...)
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
