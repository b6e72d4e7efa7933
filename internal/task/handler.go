package task

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/supermodelai/supermodel-api/internal/queue"
)

// Handler executes jobs of one named kind. Implementations return the
// result blob recorded on the ledger, or an error classified per the
// generation package taxonomy so the worker pool can decide whether to
// retry.
// Version: 1.0
type Handler interface {
	// Name returns the job name this handler executes.
	Name() string

	// Handle runs the job and returns the result recorded on completion.
	Handle(ctx context.Context, job *queue.Job) (json.RawMessage, error)
}

// Registry maps job names to handlers. The worker pool dispatches through
// it, so new task kinds plug in without touching the scheduling logic.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler. Returns an error if one is already registered
// under the same name.
func (r *Registry) Register(handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := handler.Name()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for job name %q", name)
	}

	r.handlers[name] = handler
	return nil
}

// Get returns the handler registered under the given name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	return handler, ok
}
