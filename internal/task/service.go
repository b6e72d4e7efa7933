package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// Service owns task submission and ledger reads. Submission writes the
// ledger row first and enqueues the job in the same control-flow step, so a
// job never exists without a backing task.
type Service struct {
	db       *sql.DB
	tasks    store.TaskStore
	sessions store.SessionStore
	enqueuer queue.Enqueuer
	logger   *slog.Logger
}

// NewService creates a task Service. db may be nil only when no caller uses
// SubmitAIRequest.
func NewService(
	db *sql.DB,
	tasks store.TaskStore,
	sessions store.SessionStore,
	enqueuer queue.Enqueuer,
	logger *slog.Logger,
) *Service {
	return &Service{
		db:       db,
		tasks:    tasks,
		sessions: sessions,
		enqueuer: enqueuer,
		logger:   logger.With("component", "task_service"),
	}
}

// Submit records a new pending task and enqueues the job that will execute
// it. The ledger insert completes before the job is enqueued; if enqueueing
// then fails, the task is immediately marked failed so it cannot linger
// pending with no job behind it.
func (s *Service) Submit(
	ctx context.Context,
	name string,
	ownerID *uuid.UUID,
	payload json.RawMessage,
) (*domain.Task, error) {
	task, err := domain.NewTask(name, ownerID, payload)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if err := s.enqueue(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task submitted",
		"task_id", task.ID,
		"task_name", name)

	return task, nil
}

// SubmitAIRequest records the user's message and the pending ai_processing
// task in one transaction, then enqueues the job. Either both rows land or
// neither does; a message never exists without a task tracking its answer.
// The enqueue happens only after the commit so a worker can never observe
// the job before its ledger row is visible.
func (s *Service) SubmitAIRequest(
	ctx context.Context,
	ownerID uuid.UUID,
	sessionID uuid.UUID,
	message string,
	skillPackIDs []uuid.UUID,
) (*domain.Task, error) {
	payload, err := json.Marshal(AIRequestPayload{
		SessionID:    sessionID,
		Message:      message,
		SkillPackIDs: skillPackIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ai request payload: %w", err)
	}

	task, err := domain.NewTask(TaskTypeAIProcessing, &ownerID, payload)
	if err != nil {
		return nil, err
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := s.sessions.WithTx(tx).AppendMessage(
			ctx, sessionID, message, domain.MessageRoleUser,
		); err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}

		if err := s.tasks.WithTx(tx).CreateTask(ctx, task); err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("ai request submitted",
		"task_id", task.ID,
		"session_id", sessionID)

	return task, nil
}

// enqueue hands the pending task's job to the queue, marking the task
// failed when the queue refuses it.
func (s *Service) enqueue(ctx context.Context, task *domain.Task) error {
	job := &queue.Job{
		TaskID:  task.ID,
		OwnerID: task.OwnerID,
		Name:    task.Name,
		Payload: task.Payload,
	}

	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		s.logger.Error("failed to enqueue job, failing task",
			"task_id", task.ID,
			"task_name", task.Name,
			"error", err)

		errMsg := fmt.Sprintf("failed to enqueue job: %v", err)
		if updateErr := s.tasks.UpdateTaskStatus(
			ctx, task.ID, domain.TaskStatusFailed, task.Progress, nil, errMsg,
		); updateErr != nil {
			s.logger.Error("failed to mark unenqueued task as failed",
				"task_id", task.ID,
				"error", updateErr)
		}

		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	return nil
}

// GetTask retrieves a task by ID for polling clients.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *Service) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetTask(ctx, id)
}
