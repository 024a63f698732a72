// Package main implements the entry point for the Digestly API server,
// which handles user accounts, revocable bearer tokens, and asynchronous
// note summarization.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/digestly/digestly-api/internal/config"
	"github.com/digestly/digestly-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String(
		"migrate",
		"",
		"Run database migrations (up, down, status) and exit",
	)
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run loads configuration, sets up logging, and either executes a migration
// command or starts the server. Split out of main so errors flow back through
// a single exit path.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"summarizer_backend", cfg.Summarizer.Backend)

	if migrateCmd != "" {
		return runMigrations(cfg, migrateCmd)
	}

	ctx := context.Background()

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return err
	}

	redisClient, err := setupRedis(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, appLogger, db, redisClient)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
