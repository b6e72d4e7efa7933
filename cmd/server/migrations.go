package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/supermodelai/supermodel-api/internal/config"
)

// migrationsDir is the repository path holding the goose SQL migrations.
const migrationsDir = "internal/platform/postgres/migrations"

// slogGooseLogger adapts goose's logger interface to structured logging.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}

// runMigrations executes the given goose command (up, down, status) against
// the configured database and returns once it completes.
func runMigrations(cfg *config.Config, logger *slog.Logger, command string) error {
	goose.SetLogger(&slogGooseLogger{logger: logger})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close migration database connection", "error", err)
		}
	}()

	logger.Info("running migration command", "command", command, "dir", migrationsDir)

	switch command {
	case "up":
		err = goose.Up(db, migrationsDir)
	case "down":
		err = goose.Down(db, migrationsDir)
	case "status":
		err = goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q (expected up, down or status)", command)
	}

	if err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}
	return nil
}
