package task

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/supermodelai/supermodel-api/internal/assembler"
	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/events"
	"github.com/supermodelai/supermodel-api/internal/generation"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDriver backs an *sql.DB whose transactions are no-ops, so code using
// store.RunInTransaction can run against in-memory stores.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStubDriver sync.Once

func stubDB(t *testing.T) *sql.DB {
	t.Helper()

	registerStubDriver.Do(func() {
		sql.Register("task-test-stub", stubDriver{})
	})

	db, err := sql.Open("task-test-stub", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// memoryTaskStore is a thread-safe in-memory TaskStore with the same
// terminal-state guard the database store enforces. Error injection hooks
// let tests simulate persistence failures.
type memoryTaskStore struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*domain.Task
	createErr error
	updateErr error

	// updateHook, when set, observes every status write together with the
	// context it arrived on.
	updateHook func(ctx context.Context, status domain.TaskStatus)
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *memoryTaskStore) CreateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}

	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memoryTaskStore) GetTask(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	copied := *task
	return &copied, nil
}

func (s *memoryTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	progress int,
	result json.RawMessage,
	errMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateHook != nil {
		s.updateHook(ctx, status)
	}

	if s.updateErr != nil {
		return s.updateErr
	}

	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}

	if task.IsTerminal() && task.Status != status {
		return fmt.Errorf("%w: task %s is in terminal state %s",
			store.ErrUpdateFailed, id, task.Status)
	}

	task.Status = status
	task.Progress = progress
	task.Result = result
	task.Error = errMsg
	task.UpdatedAt = time.Now().UTC()
	if status == domain.TaskStatusCompleted && task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}
	return nil
}

func (s *memoryTaskStore) GetProcessingTasks(
	_ context.Context,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var found []*domain.Task
	for _, task := range s.tasks {
		if task.Status != domain.TaskStatusProcessing {
			continue
		}
		if olderThan > 0 && task.UpdatedAt.After(cutoff) {
			continue
		}
		copied := *task
		found = append(found, &copied)
	}
	return found, nil
}

func (s *memoryTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return s
}

// mockEnqueuer records enqueued jobs and can be primed to fail.
type mockEnqueuer struct {
	mu         sync.Mutex
	jobs       []*queue.Job
	enqueueErr error
}

func (e *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enqueueErr != nil {
		return e.enqueueErr
	}
	e.jobs = append(e.jobs, job)
	return nil
}

// recordingPublisher captures published events per owner in publish order.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[uuid.UUID][]events.TaskEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[uuid.UUID][]events.TaskEvent)}
}

func (p *recordingPublisher) Publish(_ context.Context, ownerID uuid.UUID, event events.TaskEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[ownerID] = append(p.events[ownerID], event)
}

func (p *recordingPublisher) eventsFor(ownerID uuid.UUID) []events.TaskEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	captured := make([]events.TaskEvent, len(p.events[ownerID]))
	copy(captured, p.events[ownerID])
	return captured
}

// mockHandler counts attempts and delegates to a func field.
type mockHandler struct {
	name     string
	mu       sync.Mutex
	attempts int
	handle   func(attempt int) (json.RawMessage, error)
}

func (h *mockHandler) Name() string {
	return h.name
}

func (h *mockHandler) Handle(_ context.Context, _ *queue.Job) (json.RawMessage, error) {
	h.mu.Lock()
	h.attempts++
	attempt := h.attempts
	h.mu.Unlock()
	return h.handle(attempt)
}

func (h *mockHandler) attemptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

// mockSessionStore records appended messages.
type mockSessionStore struct {
	mu        sync.Mutex
	messages  []*domain.Message
	appendErr error
}

func (s *mockSessionStore) CreateSession(context.Context, *domain.Session) error {
	return nil
}

func (s *mockSessionStore) GetSession(context.Context, uuid.UUID) (*domain.Session, error) {
	return nil, store.ErrSessionNotFound
}

func (s *mockSessionStore) AppendMessage(
	_ context.Context,
	sessionID uuid.UUID,
	content string,
	role domain.MessageRole,
) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return nil, s.appendErr
	}

	message, err := domain.NewMessage(sessionID, content, role)
	if err != nil {
		return nil, err
	}
	s.messages = append(s.messages, message)
	return message, nil
}

func (s *mockSessionStore) ListMessages(context.Context, uuid.UUID) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	captured := make([]*domain.Message, len(s.messages))
	copy(captured, s.messages)
	return captured, nil
}

func (s *mockSessionStore) AttachSkillPack(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (s *mockSessionStore) ListSessionSkillPacks(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *mockSessionStore) WithTx(_ *sql.Tx) store.SessionStore {
	return s
}

// mockAssembler returns a canned context or error.
type mockAssembler struct {
	mu          sync.Mutex
	calls       int
	context     *assembler.Context
	assembleErr error
}

func (a *mockAssembler) Assemble(_ context.Context, _ []uuid.UUID) (*assembler.Context, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	if a.assembleErr != nil {
		return nil, a.assembleErr
	}
	return a.context, nil
}

func (a *mockAssembler) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// mockInvoker captures the prompt it was given.
type mockInvoker struct {
	mu        sync.Mutex
	prompts   []string
	result    *generation.Result
	invokeErr error
}

func (i *mockInvoker) Invoke(_ context.Context, prompt string, _ int32) (*generation.Result, error) {
	i.mu.Lock()
	i.prompts = append(i.prompts, prompt)
	i.mu.Unlock()

	if i.invokeErr != nil {
		return nil, i.invokeErr
	}
	return i.result, nil
}

func (i *mockInvoker) lastPrompt() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.prompts) == 0 {
		return ""
	}
	return i.prompts[len(i.prompts)-1]
}
