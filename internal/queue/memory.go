package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the in-memory queue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// MemoryQueue implements a buffered in-process job queue that satisfies the
// Queue interface. Channel semantics give exactly-once delivery to a single
// consumer within the process; durability across restarts comes from the
// task ledger, not the queue.
type MemoryQueue struct {
	jobs   chan *Job
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewMemoryQueue creates a new in-memory queue with the specified buffer size.
func NewMemoryQueue(size int, logger *slog.Logger) *MemoryQueue {
	return &MemoryQueue{
		jobs:   make(chan *Job, size),
		logger: logger.With("component", "memory_queue"),
	}
}

// Enqueue adds a job to the queue for processing.
// Returns an error if the queue is full or closed.
func (q *MemoryQueue) Enqueue(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("job enqueued",
			"task_id", job.TaskID,
			"job_name", job.Name,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// Jobs returns a read-only channel for consuming jobs.
func (q *MemoryQueue) Jobs() <-chan *Job {
	return q.jobs
}

// Close closes the queue, preventing further job submission.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.jobs)
		q.logger.Info("job queue closed")
	}
	return nil
}
