package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a background task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Progress bounds for a task
const (
	MinProgress = 0
	MaxProgress = 100
)

// Common validation errors for Task
var (
	ErrEmptyTaskID          = errors.New("task ID cannot be empty")
	ErrEmptyTaskName        = errors.New("task name cannot be empty")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrInvalidTaskProgress  = errors.New("task progress must be between 0 and 100")
	ErrTerminalTask         = errors.New("task is in a terminal state")
	ErrInvalidTransition    = errors.New("invalid task status transition")
	ErrResultOnNonCompleted = errors.New("result can only be set on a completed task")
	ErrErrorOnNonFailed     = errors.New("error can only be set on a failed task")
)

// Task is a durable ledger entry describing one unit of asynchronous work.
// It is created with status pending, mutated exclusively by the single
// worker that owns its job, and never deleted.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	OwnerID     *uuid.UUID      `json:"owner_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      TaskStatus      `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewTask creates a new Task with the given name, optional owner and payload.
// It generates a new UUID for the task ID, sets the status to pending with
// zero progress, and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(name string, ownerID *uuid.UUID, payload json.RawMessage) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		Payload:   payload,
		Status:    TaskStatusPending,
		Progress:  MinProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Name == "" {
		return ErrEmptyTaskName
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.Progress < MinProgress || t.Progress > MaxProgress {
		return ErrInvalidTaskProgress
	}

	if len(t.Result) > 0 && t.Status != TaskStatusCompleted {
		return ErrResultOnNonCompleted
	}

	if t.Error != "" && t.Status != TaskStatusFailed {
		return ErrErrorOnNonFailed
	}

	return nil
}

// IsTerminal reports whether the task has reached a terminal state.
// Terminal tasks cannot transition to any other state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// CanTransitionTo reports whether the task status state machine permits
// moving from the current status to the given one. The machine is
// pending -> processing -> {completed, failed}, with no exit from a
// terminal state. Re-asserting the current non-terminal status is allowed
// so that idempotent progress updates remain valid transitions.
func (t *Task) CanTransitionTo(status TaskStatus) bool {
	if !isValidTaskStatus(status) {
		return false
	}

	switch t.Status {
	case TaskStatusPending:
		return status == TaskStatusPending || status == TaskStatusProcessing
	case TaskStatusProcessing:
		return status == TaskStatusProcessing ||
			status == TaskStatusCompleted ||
			status == TaskStatusFailed
	default:
		return false
	}
}

// Complete transitions the task to completed with full progress and the
// given result. Returns an error if the transition is not permitted.
func (t *Task) Complete(result json.RawMessage) error {
	if !t.CanTransitionTo(TaskStatusCompleted) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.Progress = MaxProgress
	t.Result = result
	t.UpdatedAt = now
	t.CompletedAt = &now
	return nil
}

// Fail transitions the task to failed with the given error message.
// Progress is left at its last known value. Returns an error if the
// transition is not permitted.
func (t *Task) Fail(errMsg string) error {
	if !t.CanTransitionTo(TaskStatusFailed) {
		return ErrInvalidTransition
	}

	t.Status = TaskStatusFailed
	t.Error = errMsg
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
