// Package main implements the entry point for the Supermodel API server,
// which runs the background task subsystem: the task ledger, the worker
// pool executing AI requests, and the notification channel that streams
// task progress to session owners.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/supermodelai/supermodel-api/internal/config"
	"github.com/supermodelai/supermodel-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// run loads configuration, sets up logging, and either executes a
// migration command or starts the full application.
func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_kind", cfg.Queue.Kind)

	if migrateCmd != "" {
		return runMigrations(cfg, appLogger, migrateCmd)
	}

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.startHTTPServer(ctx)
}
