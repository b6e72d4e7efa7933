// Package queue defines the job envelope dispatched to workers and the
// queue port that decouples task creation from execution. Two
// implementations exist: the in-process buffered queue in this package and
// the NATS JetStream adapter in internal/platform/natsqueue.
package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Job is the queue-level envelope wrapping a reference to a task plus the
// data needed to execute it. It is created in the same control-flow step as
// its task row and consumed exactly once by a worker under the queue's
// delivery guarantee.
type Job struct {
	// TaskID references the ledger row this job executes.
	TaskID uuid.UUID `json:"task_id"`

	// OwnerID routes notifications to the owner's room. System jobs have none.
	OwnerID *uuid.UUID `json:"owner_id,omitempty"`

	// Name selects the registered handler that executes the job.
	Name string `json:"name"`

	// Payload carries the handler-specific execution data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes the job for transport over a broker.
func (j *Job) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeJob deserializes a job received from a broker.
func DecodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Enqueuer provides write access to the job queue, allowing services to
// enqueue jobs for processing.
// Version: 1.0
type Enqueuer interface {
	// Enqueue adds a job to the queue for processing.
	// Returns an error if the queue is full or closed.
	Enqueue(ctx context.Context, job *Job) error
}

// Source provides read-only access to the job stream, allowing workers to
// consume jobs without the ability to enqueue.
// Version: 1.0
type Source interface {
	// Jobs returns a read-only channel for consuming jobs. The channel is
	// closed when the queue shuts down.
	Jobs() <-chan *Job
}

// Queue combines both sides of the job queue port.
type Queue interface {
	Enqueuer
	Source

	// Close shuts the queue down, preventing further job submission.
	Close() error
}
