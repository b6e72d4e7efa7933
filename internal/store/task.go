package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
)

// TaskStore defines the interface for task ledger persistence.
// Version: 1.0
type TaskStore interface {
	// CreateTask inserts a new task row. The task must be in the pending
	// state with zero progress. Returns validation errors from the domain
	// Task if data is invalid.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTaskStatus overwrites the task's status, progress, result and
	// error message. completed_at is set exactly when the status transitions
	// to completed. The update is idempotent by task ID and refuses to move
	// a task out of a terminal state; such calls return ErrUpdateFailed.
	UpdateTaskStatus(
		ctx context.Context,
		id uuid.UUID,
		status domain.TaskStatus,
		progress int,
		result json.RawMessage,
		errMsg string,
	) error

	// GetProcessingTasks retrieves tasks in the processing state.
	// If olderThan is non-zero, only tasks that have not been updated for
	// at least that duration are returned.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
