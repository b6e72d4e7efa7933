package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/events"
	"github.com/supermodelai/supermodel-api/internal/generation"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// MaxRetries bounds how many times a transient failure is retried
	// before the task is recorded as failed
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff between
	// retries of transient failures
	RetryBaseDelay time.Duration

	// StuckTaskAge defines how long a task can sit in the processing state
	// before the monitor reaps it as failed
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	// If zero, defaults to 5 minutes
	StuckTaskCheckInterval time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:            2,
		MaxRetries:             3,
		RetryBaseDelay:         2 * time.Second,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
	}
}

// WorkerPool manages a fixed-size pool of workers that pull jobs from the
// queue, drive each task through its lifecycle, and publish notification
// events to the task owner's room. One job is processed by exactly one
// worker; a job failure never crashes the pool or affects other in-flight
// jobs.
type WorkerPool struct {
	source     queue.Source
	tasks      store.TaskStore
	registry   *Registry
	publisher  events.Publisher
	config     WorkerPoolConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	quit       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewWorkerPool creates a new WorkerPool.
func NewWorkerPool(
	source queue.Source,
	tasks store.TaskStore,
	registry *Registry,
	publisher events.Publisher,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		source:     source,
		tasks:      tasks,
		registry:   registry,
		publisher:  publisher,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
		quit:       make(chan struct{}),
	}
}

// Start launches the worker goroutines and the stuck-task monitor.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.stuckTaskMonitor()
}

// Stop gracefully shuts down the worker pool. The quit signal stops
// workers from dequeuing new jobs, the context cancellation interrupts any
// in-flight handler call, and the wait returns once every in-flight job has
// recorded its terminal state.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.cancelFunc()
	})
	p.wg.Wait()
}

// worker processes jobs from the queue until shutdown.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-p.quit:
			p.logger.Debug("stopping worker", "worker_id", id)
			return

		case job, ok := <-p.source.Jobs():
			if !ok {
				p.logger.Debug("job channel closed, stopping worker", "worker_id", id)
				return
			}

			p.processJob(job, id)
		}
	}
}

// processJob drives one job through the task lifecycle. The ledger write
// always precedes the corresponding event publish, and events for one task
// are published in ledger-write order because a task is bound to exactly
// one worker.
func (p *WorkerPool) processJob(job *queue.Job, workerID int) {
	// Ledger writes and event publishes survive shutdown: cancellation may
	// interrupt the handler, but the resulting terminal state must still be
	// recorded or the task is stranded in processing.
	ctx := context.WithoutCancel(p.ctx)
	logger := p.logger.With(
		"task_id", job.TaskID,
		"job_name", job.Name,
		"worker_id", workerID,
	)

	// Mark the task processing before doing any work, so a crash mid-job
	// still leaves an observable state for the stuck-task monitor.
	if err := p.tasks.UpdateTaskStatus(
		ctx, job.TaskID, domain.TaskStatusProcessing, domain.MinProgress, nil, "",
	); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		return
	}
	p.publish(ctx, job, domain.TaskStatusProcessing, domain.MinProgress, "")

	logger.Info("processing job")

	result, err := p.executeWithRetry(p.ctx, job, logger)
	if err != nil {
		logger.Error("job execution failed", "error", err)

		errMsg := err.Error()
		if updateErr := p.tasks.UpdateTaskStatus(
			ctx, job.TaskID, domain.TaskStatusFailed, domain.MinProgress, nil, errMsg,
		); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
			return
		}
		p.publish(ctx, job, domain.TaskStatusFailed, domain.MinProgress, errMsg)
		return
	}

	logger.Info("job completed successfully")

	if updateErr := p.tasks.UpdateTaskStatus(
		ctx, job.TaskID, domain.TaskStatusCompleted, domain.MaxProgress, result, "",
	); updateErr != nil {
		logger.Error("failed to update task status to completed", "error", updateErr)
		return
	}
	p.publish(ctx, job, domain.TaskStatusCompleted, domain.MaxProgress, "")
}

// executeWithRetry runs the job's handler, retrying transient failures
// with exponential backoff and jitter up to the configured attempt bound.
// Permanent failures and content-fetch failures are returned after the
// first attempt.
func (p *WorkerPool) executeWithRetry(
	ctx context.Context,
	job *queue.Job,
	logger *slog.Logger,
) (json.RawMessage, error) {
	handler, ok := p.registry.Get(job.Name)
	if !ok {
		return nil, fmt.Errorf("no handler registered for job name %q", job.Name)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		result, err := handler.Handle(ctx, job)
		if err == nil {
			return result, nil
		}

		if !generation.IsTransient(err) {
			return nil, err
		}

		if attempt >= p.config.MaxRetries {
			return nil, fmt.Errorf("exceeded maximum retry attempts (%d): %w",
				p.config.MaxRetries, err)
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoff := float64(p.config.RetryBaseDelay) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5 // Between 0.5 and 1.0
		delay := time.Duration(backoff * jitterFactor)

		logger.Info("transient failure, retrying after delay",
			"attempt", attempt+1,
			"max_attempts", p.config.MaxRetries+1,
			"delay", delay,
			"error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("retry interrupted by shutdown: %w", err)
		}
	}
}

// publish emits a best-effort notification event for the job's owner.
// Ownerless system tasks produce no events.
func (p *WorkerPool) publish(
	ctx context.Context,
	job *queue.Job,
	status domain.TaskStatus,
	progress int,
	errMsg string,
) {
	if job.OwnerID == nil {
		return
	}

	p.publisher.Publish(ctx, *job.OwnerID, events.TaskEvent{
		TaskID:   job.TaskID,
		Status:   status,
		Progress: progress,
		Error:    errMsg,
	})
}

// stuckTaskMonitor periodically reaps tasks that have sat in the
// processing state past the configured age, e.g. after a worker crash
// mid-job. Reaped tasks are recorded as failed rather than requeued so a
// half-finished model invocation is never silently re-run.
func (p *WorkerPool) stuckTaskMonitor() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return

		case <-ticker.C:
			p.reapStuckTasks()
		}
	}
}

// reapStuckTasks fails every task stuck in processing past StuckTaskAge
// and publishes a failure event to its owner.
func (p *WorkerPool) reapStuckTasks() {
	// A reap pass that races shutdown still records its failures.
	ctx := context.WithoutCancel(p.ctx)

	stuck, err := p.tasks.GetProcessingTasks(ctx, p.config.StuckTaskAge)
	if err != nil {
		p.logger.Error("failed to check for stuck tasks", "error", err)
		return
	}

	if len(stuck) == 0 {
		return
	}

	p.logger.Info("found stuck tasks", "count", len(stuck))

	for _, t := range stuck {
		errMsg := fmt.Sprintf("task stuck in processing state for over %s", p.config.StuckTaskAge)
		if err := p.tasks.UpdateTaskStatus(
			ctx, t.ID, domain.TaskStatusFailed, t.Progress, nil, errMsg,
		); err != nil {
			p.logger.Error("failed to reap stuck task",
				"task_id", t.ID,
				"error", err)
			continue
		}

		p.logger.Info("reaped stuck task", "task_id", t.ID, "task_name", t.Name)

		if t.OwnerID != nil {
			p.publisher.Publish(ctx, *t.OwnerID, events.TaskEvent{
				TaskID:   t.ID,
				Status:   domain.TaskStatusFailed,
				Progress: t.Progress,
				Error:    errMsg,
			})
		}
	}
}
