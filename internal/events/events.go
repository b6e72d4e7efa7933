package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
)

// TaskEvent is the ephemeral notification pushed to the task owner's room
// whenever the task ledger is updated. Events are not persisted; a client
// that misses one recovers by polling the ledger.
type TaskEvent struct {
	// TaskID identifies the task the event describes.
	TaskID uuid.UUID `json:"task_id"`

	// Status is the task's lifecycle state after the ledger write.
	Status domain.TaskStatus `json:"status"`

	// Progress is the task's progress after the ledger write.
	Progress int `json:"progress"`

	// Error carries the failure message for failed tasks.
	Error string `json:"error,omitempty"`
}

// NewTaskEvent builds the event describing the task's current state.
func NewTaskEvent(task *domain.Task) TaskEvent {
	return TaskEvent{
		TaskID:   task.ID,
		Status:   task.Status,
		Progress: task.Progress,
		Error:    task.Error,
	}
}

// Publisher delivers task events to every connection currently joined to
// the owner's room. Delivery is best-effort: events for owners with no
// joined connections are dropped silently, and a failed delivery never
// fails the operation that produced the event.
type Publisher interface {
	// Publish delivers the event to the owner's room.
	Publish(ctx context.Context, ownerID uuid.UUID, event TaskEvent)
}

// NopPublisher discards all events. It stands in for the fanout hub in
// tests and in deployments without a real-time channel.
type NopPublisher struct{}

// Publish implements Publisher by doing nothing.
func (NopPublisher) Publish(context.Context, uuid.UUID, TaskEvent) {}

var _ Publisher = NopPublisher{}
