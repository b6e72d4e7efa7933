package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/store"
	"github.com/supermodelai/supermodel-api/internal/task"
)

func newTaskHandlerFixture(tasks *mockTaskStore) *TaskHandler {
	service := task.NewService(nil, tasks, nil, &mockEnqueuer{}, testLogger())
	return NewTaskHandler(service)
}

func completedTask(t *testing.T, ownerID uuid.UUID) *domain.Task {
	t.Helper()

	created, err := domain.NewTask("ai_processing", &ownerID, json.RawMessage(`{}`))
	require.NoError(t, err)
	created.Status = domain.TaskStatusCompleted
	created.Progress = 100
	created.Result = json.RawMessage(`{"text":"hello"}`)
	now := time.Now().UTC()
	created.CompletedAt = &now
	return created
}

func TestGetTaskSuccess(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	stored := completedTask(t, ownerID)

	tasks := &mockTaskStore{
		getTaskFn: func(_ context.Context, id uuid.UUID) (*domain.Task, error) {
			require.Equal(t, stored.ID, id)
			return stored, nil
		},
	}
	handler := newTaskHandlerFixture(tasks)

	recorder := serveAs(t, ownerID, http.MethodGet, "/api/tasks/"+stored.ID.String(), "",
		func(r chi.Router) {
			r.Get("/api/tasks/{id}", handler.GetTask)
		})

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID.String(), resp.ID)
	assert.Equal(t, "ai_processing", resp.Name)
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, 100, resp.Progress)
	assert.JSONEq(t, `{"text":"hello"}`, string(resp.Result))
	assert.NotNil(t, resp.CompletedAt)
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	handler := newTaskHandlerFixture(&mockTaskStore{
		getTaskFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
			return nil, store.ErrTaskNotFound
		},
	})

	recorder := serveAs(t, uuid.New(), http.MethodGet, "/api/tasks/"+uuid.NewString(), "",
		func(r chi.Router) {
			r.Get("/api/tasks/{id}", handler.GetTask)
		})

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGetTaskOtherOwnerReadsAsNotFound(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	stored := completedTask(t, ownerID)

	handler := newTaskHandlerFixture(&mockTaskStore{
		getTaskFn: func(context.Context, uuid.UUID) (*domain.Task, error) {
			return stored, nil
		},
	})

	recorder := serveAs(t, uuid.New(), http.MethodGet, "/api/tasks/"+stored.ID.String(), "",
		func(r chi.Router) {
			r.Get("/api/tasks/{id}", handler.GetTask)
		})

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Task not found")
}

func TestGetTaskInvalidID(t *testing.T) {
	t.Parallel()

	handler := newTaskHandlerFixture(&mockTaskStore{})

	recorder := serveAs(t, uuid.New(), http.MethodGet, "/api/tasks/not-a-uuid", "",
		func(r chi.Router) {
			r.Get("/api/tasks/{id}", handler.GetTask)
		})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
