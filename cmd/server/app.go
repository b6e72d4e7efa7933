package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/supermodelai/supermodel-api/internal/api"
	"github.com/supermodelai/supermodel-api/internal/assembler"
	"github.com/supermodelai/supermodel-api/internal/auth"
	"github.com/supermodelai/supermodel-api/internal/config"
	"github.com/supermodelai/supermodel-api/internal/platform/gemini"
	"github.com/supermodelai/supermodel-api/internal/platform/natsqueue"
	"github.com/supermodelai/supermodel-api/internal/platform/postgres"
	"github.com/supermodelai/supermodel-api/internal/platform/ristretto"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/task"
	"github.com/supermodelai/supermodel-api/internal/ws"
)

// contentCacheMaxBytes bounds the in-process skill-pack content cache.
const contentCacheMaxBytes = 64 << 20

// application holds the long-lived components of the server and owns their
// shutdown order.
type application struct {
	config *config.Config
	logger *slog.Logger

	db       *sql.DB
	jobQueue queue.Queue
	pool     *task.WorkerPool
	router   http.Handler
}

// newApplication wires all application components together and starts the
// worker pool. The caller is responsible for invoking cleanup on shutdown.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	sessionStore := postgres.NewPostgresSessionStore(db, logger)
	packStore := postgres.NewPostgresSkillPackContentStore(db, logger)

	jobQueue, err := setupQueue(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up job queue: %w", err)
	}

	contentCache, err := ristretto.New(contentCacheMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create content cache: %w", err)
	}
	contextAssembler := assembler.New(packStore, contentCache, logger)

	invoker, err := gemini.NewInvoker(ctx, logger, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create model invoker: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	hub := ws.NewHub(jwtService, logger)
	taskService := task.NewService(db, taskStore, sessionStore, jobQueue, logger)

	registry := task.NewRegistry()
	aiHandler, err := task.NewAIProcessingHandler(
		contextAssembler, invoker, sessionStore, cfg.LLM.MaxOutputTokens, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai_processing handler: %w", err)
	}
	if err := registry.Register(aiHandler); err != nil {
		return nil, fmt.Errorf("failed to register ai_processing handler: %w", err)
	}

	pool := task.NewWorkerPool(jobQueue, taskStore, registry, hub, task.WorkerPoolConfig{
		WorkerCount:            cfg.Worker.Count,
		MaxRetries:             cfg.Worker.MaxRetries,
		RetryBaseDelay:         time.Duration(cfg.Worker.RetryDelaySeconds) * time.Second,
		StuckTaskAge:           time.Duration(cfg.Worker.StuckTaskAgeMinutes) * time.Minute,
		StuckTaskCheckInterval: time.Duration(cfg.Worker.StuckTaskCheckMinutes) * time.Minute,
	}, logger)
	pool.Start()

	router := api.NewRouter(api.RouterDeps{
		TaskService: taskService,
		Sessions:    sessionStore,
		JWTService:  jwtService,
		Hub:         hub,
		Logger:      logger,
	})

	return &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		jobQueue: jobQueue,
		pool:     pool,
		router:   router,
	}, nil
}

// cleanup releases application resources in reverse dependency order: the
// queue stops accepting jobs, the pool drains in-flight work, then the
// database connection closes.
func (app *application) cleanup() {
	if err := app.jobQueue.Close(); err != nil {
		app.logger.Error("failed to close job queue", "error", err)
	}

	app.pool.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}

	app.logger.Info("application cleanup completed")
}

// setupDatabase opens the database connection pool and verifies
// connectivity with a ping.
func setupDatabase(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return db, nil
}

// setupQueue creates the job queue selected by configuration.
func setupQueue(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (queue.Queue, error) {
	switch cfg.Queue.Kind {
	case "nats":
		return natsqueue.Connect(ctx, cfg.Queue.NATSURL, logger)
	default:
		return queue.NewMemoryQueue(cfg.Queue.Size, logger), nil
	}
}
