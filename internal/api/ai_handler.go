package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/api/shared"
	"github.com/supermodelai/supermodel-api/internal/store"
	"github.com/supermodelai/supermodel-api/internal/task"
)

// CreateAIRequest represents the request body for submitting an AI request
type CreateAIRequest struct {
	SessionID    uuid.UUID   `json:"session_id"     validate:"required"`
	Message      string      `json:"message"        validate:"required,min=1"`
	SkillPackIDs []uuid.UUID `json:"skill_pack_ids"`
}

// AIRequestResponse acknowledges an accepted AI request with the task that
// tracks it.
type AIRequestResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// AIRequestHandler handles AI request submission
type AIRequestHandler struct {
	taskService *task.Service
	sessions    store.SessionStore
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewAIRequestHandler creates a new AIRequestHandler
func NewAIRequestHandler(
	taskService *task.Service,
	sessions store.SessionStore,
	logger *slog.Logger,
) *AIRequestHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AIRequestHandler{
		taskService: taskService,
		sessions:    sessions,
		validator:   validator.New(),
		logger:      logger.With(slog.String("component", "ai_request_handler")),
	}
}

// CreateRequest handles POST /api/ai/requests. It records the user message,
// submits an ai_processing task, and returns 202 Accepted; the caller
// follows progress over the notification channel or by polling the task.
func (h *AIRequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := getOwnerIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	var req CreateAIRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	// The session must exist and belong to the caller before any work is
	// queued against it.
	session, err := h.sessions.GetSession(r.Context(), req.SessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if session.OwnerID != ownerID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	// The user message and the pending task are written in one
	// transaction, so the conversation history never carries a message
	// with no task tracking its answer.
	submitted, err := h.taskService.SubmitAIRequest(
		r.Context(), ownerID, req.SessionID, req.Message, req.SkillPackIDs,
	)
	if err != nil {
		h.logger.Error("failed to submit ai request",
			"session_id", req.SessionID,
			"error", err)
		HandleAPIError(w, r, err, "Failed to submit request")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, AIRequestResponse{
		TaskID: submitted.ID.String(),
		Status: string(submitted.Status),
	})
}
