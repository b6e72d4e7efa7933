package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/platform/logger"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// CreateTask implements store.TaskStore.CreateTask
// It inserts a new task row, validating the task first.
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (id, name, user_id, data, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Name,
		task.OwnerID,
		nullableJSON(task.Payload),
		task.Status,
		task.Progress,
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.Name))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.Name))
	return nil
}

// GetTask implements store.TaskStore.GetTask
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, user_id, data, status, progress, result, error, created_at, updated_at, completed_at
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateTaskStatus implements store.TaskStore.UpdateTaskStatus
// The update is idempotent by task ID. A task already in a terminal state
// is never moved out of it; such calls return store.ErrUpdateFailed. The
// completed_at column is set exactly when the status becomes completed.
func (s *PostgresTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	progress int,
	result json.RawMessage,
	errMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if progress < domain.MinProgress || progress > domain.MaxProgress {
		return domain.ErrInvalidTaskProgress
	}

	// The WHERE clause enforces the terminal-state guard in the database,
	// so concurrent writers cannot race a task out of completed or failed.
	query := `
		UPDATE tasks
		SET status = $1,
		    progress = $2,
		    result = $3,
		    error = $4,
		    updated_at = $5,
		    completed_at = CASE
		        WHEN $1 = 'completed' AND completed_at IS NULL THEN $5
		        ELSE completed_at
		    END
		WHERE id = $6
		  AND (status NOT IN ('completed', 'failed') OR status = $1)
	`

	res, err := s.db.ExecContext(
		ctx,
		query,
		status,
		progress,
		nullableJSON(result),
		// The error column is NOT NULL DEFAULT ''; an empty message is
		// written as the empty string, never as SQL NULL.
		errMsg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a missing task from a terminal-state refusal.
		var existing string
		err := s.db.QueryRowContext(
			ctx, "SELECT status FROM tasks WHERE id = $1", id,
		).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrTaskNotFound
		}
		if err != nil {
			return MapError(err)
		}

		log.Warn("refusing to move task out of terminal state",
			slog.String("task_id", id.String()),
			slog.String("current_status", existing),
			slog.String("requested_status", string(status)))
		return fmt.Errorf("%w: task %s is in terminal state %s",
			store.ErrUpdateFailed, id, existing)
	}

	log.Debug("task status updated",
		slog.String("task_id", id.String()),
		slog.String("status", string(status)),
		slog.Int("progress", progress))
	return nil
}

// GetProcessingTasks implements store.TaskStore.GetProcessingTasks
// If olderThan is non-zero, only tasks whose last update is at least that
// old are returned.
func (s *PostgresTaskStore) GetProcessingTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, name, user_id, data, status, progress, result, error, created_at, updated_at, completed_at
		FROM tasks
		WHERE status = $1
	`
	args := []interface{}{domain.TaskStatusProcessing}

	if olderThan > 0 {
		query += " AND updated_at < $2"
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	query += " ORDER BY updated_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query processing tasks",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return tasks, nil
}

// WithTx implements store.TaskStore.WithTx
// It returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTask reads one task row in the canonical column order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var payload, result []byte
	var errMsg sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.OwnerID,
		&payload,
		&task.Status,
		&task.Progress,
		&result,
		&errMsg,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Payload = json.RawMessage(payload)
	task.Result = json.RawMessage(result)
	task.Error = errMsg.String

	return &task, nil
}

// nullableJSON maps an empty raw message to SQL NULL so empty blobs do not
// get stored as zero-length JSONB values.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
