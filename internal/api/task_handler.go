package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/supermodelai/supermodel-api/internal/api/shared"
	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/task"
)

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TaskHandler handles task polling HTTP requests
type TaskHandler struct {
	taskService *task.Service
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskService *task.Service) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// GetTask handles GET /api/tasks/{id} requests. Clients poll it to recover
// task state that a dropped notification connection missed.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ownerID, taskID, ok := requireOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// Tasks are only visible to their owner. A mismatch reads as not
	// found so task IDs cannot be probed across owners.
	if found.OwnerID == nil || *found.OwnerID != ownerID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToDTOResponse(found))
}

// taskToDTOResponse converts a domain.Task to a TaskResponse
func taskToDTOResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		Name:        t.Name,
		Status:      string(t.Status),
		Progress:    t.Progress,
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
	}
}
