package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/replay/internal/identity"
	"github.com/desertthunder/replay/internal/repositories"
	"github.com/desertthunder/replay/internal/services"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	db      *sql.DB
	service services.OAuthService
	logger  *log.Logger
	output  io.Writer

	// SignIn lives on the concrete provider, not the [identity.Provider]
	// interface the session layer consumes.
	provider   *identity.LocalProvider
	docs       repositories.DocumentStore
	users      *repositories.UserRepository
	controller *tasks.SessionController
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	DB      *sql.DB
	Service services.OAuthService
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		db:      opts.DB,
		service: opts.Service,
		logger:  opts.Logger,
		output:  opts.Output,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// ensureSession lazily builds the session stack: database, repositories,
// identity provider, and the session controller observing it.
func (r *Runner) ensureSession(ctx context.Context) error {
	if r.controller != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		r.db = db
	}

	if r.service == nil {
		svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
		if err != nil {
			return fmt.Errorf("%w: %v (run 'replay setup' and fill in Spotify credentials)", shared.ErrServiceUnavailable, err)
		}
		r.service = svc
	}

	r.users = repositories.NewUserRepository(r.db)
	r.docs = repositories.NewSQLiteDocumentStore(r.db)

	provider, err := identity.NewLocalProvider(r.db, r.users, r.docs)
	if err != nil {
		return err
	}
	r.provider = provider

	r.controller = tasks.NewSessionController(r.provider, r.docs, r.service, r.logger)
	r.controller.Start(ctx)
	return nil
}

// session returns the controller, building the stack on first use.
func (r *Runner) session(ctx context.Context) (*tasks.SessionController, error) {
	if err := r.ensureSession(ctx); err != nil {
		return nil, err
	}
	return r.controller, nil
}

// requireUser returns the controller if a user is signed in.
func (r *Runner) requireUser(ctx context.Context) (*tasks.SessionController, error) {
	controller, err := r.session(ctx)
	if err != nil {
		return nil, err
	}
	if controller.State().UserID == "" {
		return nil, fmt.Errorf("%w: no user signed in (run 'replay login')", shared.ErrNotAuthenticated)
	}
	return controller, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, loginCommand, logoutCommand, statusCommand, spotifyCommand, backupCommand, snapshotCommand, uiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
