package api

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/supermodelai/supermodel-api/internal/api/shared"
	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/queue"
	"github.com/supermodelai/supermodel-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDriver backs an *sql.DB whose transactions are no-ops, so the task
// service's transactional submission runs against the func-field mocks.
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
		sql.Register("api-test-stub", stubDriver{})
	})

	db, err := sql.Open("api-test-stub", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// mockTaskStore implements store.TaskStore with func fields so each test
// primes only the calls it expects.
type mockTaskStore struct {
	createTaskFn         func(ctx context.Context, task *domain.Task) error
	getTaskFn            func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	updateTaskStatusFn   func(ctx context.Context, id uuid.UUID, status domain.TaskStatus, progress int, result json.RawMessage, errMsg string) error
	getProcessingTasksFn func(ctx context.Context, olderThan time.Duration) ([]*domain.Task, error)
}

func (m *mockTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if m.createTaskFn != nil {
		return m.createTaskFn(ctx, task)
	}
	return nil
}

func (m *mockTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.getTaskFn != nil {
		return m.getTaskFn(ctx, id)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) UpdateTaskStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.TaskStatus,
	progress int,
	result json.RawMessage,
	errMsg string,
) error {
	if m.updateTaskStatusFn != nil {
		return m.updateTaskStatusFn(ctx, id, status, progress, result, errMsg)
	}
	return nil
}

func (m *mockTaskStore) GetProcessingTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]*domain.Task, error) {
	if m.getProcessingTasksFn != nil {
		return m.getProcessingTasksFn(ctx, olderThan)
	}
	return nil, nil
}

func (m *mockTaskStore) WithTx(_ *sql.Tx) store.TaskStore {
	return m
}

// mockSessionStore implements store.SessionStore with func fields.
type mockSessionStore struct {
	createSessionFn   func(ctx context.Context, session *domain.Session) error
	getSessionFn      func(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	appendMessageFn   func(ctx context.Context, sessionID uuid.UUID, content string, role domain.MessageRole) (*domain.Message, error)
	listMessagesFn    func(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error)
	attachSkillPackFn func(ctx context.Context, sessionID, skillPackID uuid.UUID) error
}

func (m *mockSessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if m.createSessionFn != nil {
		return m.createSessionFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if m.getSessionFn != nil {
		return m.getSessionFn(ctx, id)
	}
	return nil, store.ErrSessionNotFound
}

func (m *mockSessionStore) AppendMessage(
	ctx context.Context,
	sessionID uuid.UUID,
	content string,
	role domain.MessageRole,
) (*domain.Message, error) {
	if m.appendMessageFn != nil {
		return m.appendMessageFn(ctx, sessionID, content, role)
	}
	return domain.NewMessage(sessionID, content, role)
}

func (m *mockSessionStore) ListMessages(
	ctx context.Context,
	sessionID uuid.UUID,
) ([]*domain.Message, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockSessionStore) AttachSkillPack(ctx context.Context, sessionID, skillPackID uuid.UUID) error {
	if m.attachSkillPackFn != nil {
		return m.attachSkillPackFn(ctx, sessionID, skillPackID)
	}
	return nil
}

func (m *mockSessionStore) ListSessionSkillPacks(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (m *mockSessionStore) WithTx(_ *sql.Tx) store.SessionStore {
	return m
}

// mockEnqueuer records enqueued jobs.
type mockEnqueuer struct {
	jobs       []*queue.Job
	enqueueErr error
}

func (e *mockEnqueuer) Enqueue(_ context.Context, job *queue.Job) error {
	if e.enqueueErr != nil {
		return e.enqueueErr
	}
	e.jobs = append(e.jobs, job)
	return nil
}

// serveAs routes the request through a chi router with the owner identity
// already present in the context, the way the auth middleware leaves it.
func serveAs(
	t *testing.T,
	ownerID uuid.UUID,
	method, target, body string,
	register func(r chi.Router),
) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), shared.OwnerIDContextKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	register(router)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}
