package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/digestly/digestly-api/internal/config"
	"github.com/digestly/digestly-api/internal/events"
	"github.com/digestly/digestly-api/internal/platform/gemini"
	"github.com/digestly/digestly-api/internal/platform/postgres"
	redisplatform "github.com/digestly/digestly-api/internal/platform/redis"
	"github.com/digestly/digestly-api/internal/service"
	"github.com/digestly/digestly-api/internal/service/auth"
	"github.com/digestly/digestly-api/internal/store"
	"github.com/digestly/digestly-api/internal/summary"
	"github.com/digestly/digestly-api/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config

	logger *slog.Logger
	db     *sql.DB
	redis  *redis.Client

	// Stores (using interfaces for proper abstraction)
	userStore       store.UserStore
	noteStore       store.NoteStore
	revocationStore store.RevocationStore
	taskStore       task.TaskStore

	// Services
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	sessionService   *auth.SessionService
	summarizer       summary.Summarizer
	noteService      service.NoteService

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger,
// database, and redis connections that must be established before
// application initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	redisClient *redis.Client,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.passwordVerifier = auth.NewBcryptVerifier()

	bcryptCost := cfg.Auth.BcryptCost
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	// Initialize stores
	app.userStore = postgres.NewPostgresUserStore(db, bcryptCost, logger)
	app.noteStore = postgres.NewPostgresNoteStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db)
	app.revocationStore = redisplatform.NewRedisRevocationStore(redisClient)

	app.sessionService = auth.NewSessionService(
		app.jwtService,
		app.passwordVerifier,
		app.userStore,
		app.revocationStore,
	)

	app.summarizer, err = setupSummarizer(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	logger.Info("Summarizer initialized", "backend", cfg.Summarizer.Backend)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	app.noteService, err = service.NewNoteService(
		db,
		app.noteStore,
		app.userStore,
		app.eventEmitter,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create note service: %w", err)
	}

	taskFactory := task.NewNoteSummaryTaskFactory(
		app.noteService,
		app.summarizer,
		task.RetryConfig{
			MaxAttempts: cfg.Summarizer.MaxAttempts,
			MinWait:     secondsToDuration(cfg.Summarizer.RetryMinWaitSeconds),
			MaxWait:     secondsToDuration(cfg.Summarizer.RetryMaxWaitSeconds),
		},
		logger,
	)

	app.taskRunner = task.NewTaskRunner(app.taskStore, taskFactory, task.TaskRunnerConfig{
		WorkerCount:            cfg.Worker.Count,
		QueueSize:              cfg.Worker.QueueSize,
		StuckTaskAge:           time.Duration(cfg.Worker.StuckTaskAgeMinutes) * time.Minute,
		StuckTaskCheckInterval: time.Duration(cfg.Worker.StuckCheckIntervalMinutes) * time.Minute,
	}, logger)

	// Bridge note-created events into the task runner
	taskFactoryHandler := task.NewTaskFactoryEventHandler(taskFactory, app.taskRunner, logger)
	if emitter, ok := app.eventEmitter.(*events.InMemoryEventEmitter); ok {
		emitter.RegisterHandler(taskFactoryHandler)
	} else {
		return nil, fmt.Errorf("unexpected event emitter type, cannot register task handler")
	}

	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupSummarizer selects the summarization backend configured for the
// worker. The rule backend needs no external services; the gemini backend
// opens an API client during startup.
func setupSummarizer(ctx context.Context, app *application) (summary.Summarizer, error) {
	switch app.config.Summarizer.Backend {
	case "gemini":
		return gemini.NewGeminiSummarizer(
			ctx,
			app.logger.With("component", "gemini_summarizer"),
			app.config.Summarizer,
		)
	case "rule":
		return summary.NewRuleSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer backend: %q", app.config.Summarizer.Backend)
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
