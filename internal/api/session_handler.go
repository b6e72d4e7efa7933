package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/api/shared"
	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// CreateSessionRequest represents the request body for creating a session
type CreateSessionRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

// SessionResponse represents the response data for a session
type SessionResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageResponse represents the response data for a message
type MessageResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachSkillPackRequest represents the request body for attaching a skill
// pack to a session
type AttachSkillPackRequest struct {
	SkillPackID uuid.UUID `json:"skill_pack_id" validate:"required"`
}

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessions  store.SessionStore
	validator *validator.Validate
	logger    *slog.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions store.SessionStore, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionHandler{
		sessions:  sessions,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "session_handler")),
	}
}

// CreateSession handles POST /api/sessions requests
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := getOwnerIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Owner ID not found or invalid")
		return
	}

	var req CreateSessionRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	session, err := domain.NewSession(ownerID, req.Title)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.sessions.CreateSession(r.Context(), session); err != nil {
		h.logger.Error("failed to create session", "error", err, "owner_id", ownerID)
		HandleAPIError(w, r, err, "Failed to create session")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, sessionToDTOResponse(session))
}

// ListMessages handles GET /api/sessions/{id}/messages requests
func (h *SessionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := requireOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if session.OwnerID != ownerID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	messages, err := h.sessions.ListMessages(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err, "session_id", sessionID)
		HandleAPIError(w, r, err, "Failed to list messages")
		return
	}

	responses := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		responses = append(responses, MessageResponse{
			ID:        message.ID.String(),
			Content:   message.Content,
			Role:      string(message.Role),
			CreatedAt: message.CreatedAt,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// AttachSkillPack handles POST /api/sessions/{id}/skill-packs requests
func (h *SessionHandler) AttachSkillPack(w http.ResponseWriter, r *http.Request) {
	ownerID, sessionID, ok := requireOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AttachSkillPackRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	session, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if session.OwnerID != ownerID {
		shared.RespondWithError(w, r, http.StatusNotFound, "Session not found")
		return
	}

	if err := h.sessions.AttachSkillPack(r.Context(), sessionID, req.SkillPackID); err != nil {
		h.logger.Error("failed to attach skill pack",
			"error", err,
			"session_id", sessionID,
			"skill_pack_id", req.SkillPackID)
		HandleAPIError(w, r, err, "Failed to attach skill pack")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sessionToDTOResponse converts a domain.Session to a SessionResponse
func sessionToDTOResponse(session *domain.Session) SessionResponse {
	return SessionResponse{
		ID:        session.ID.String(),
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}
