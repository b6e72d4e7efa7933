package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies who authored a message within a session
type MessageRole string

// Possible message roles
const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Common validation errors for Session and Message
var (
	ErrEmptySessionID        = errors.New("session ID cannot be empty")
	ErrEmptySessionOwnerID   = errors.New("session owner ID cannot be empty")
	ErrEmptyMessageID        = errors.New("message ID cannot be empty")
	ErrEmptyMessageContent   = errors.New("message content cannot be empty")
	ErrInvalidMessageRole    = errors.New("invalid message role")
	ErrEmptyMessageSessionID = errors.New("message session ID cannot be empty")
)

// Session is a conversation container owned by one user. Messages are
// appended to it in order and never edited or removed.
type Session struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a new Session with the given owner and title.
// Returns an error if validation fails.
func NewSession(ownerID uuid.UUID, title string) (*Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks if the Session has valid data.
func (s *Session) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySessionID
	}

	if s.OwnerID == uuid.Nil {
		return ErrEmptySessionOwnerID
	}

	return nil
}

// Message is an ordered, append-only entry within a Session.
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Content   string      `json:"content"`
	Role      MessageRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewMessage creates a new Message in the given session.
// Returns an error if validation fails.
func NewMessage(sessionID uuid.UUID, content string, role MessageRole) (*Message, error) {
	message := &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Content:   content,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := message.Validate(); err != nil {
		return nil, err
	}

	return message, nil
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyMessageID
	}

	if m.SessionID == uuid.Nil {
		return ErrEmptyMessageSessionID
	}

	if m.Content == "" {
		return ErrEmptyMessageContent
	}

	if !isValidMessageRole(m.Role) {
		return ErrInvalidMessageRole
	}

	return nil
}

// isValidMessageRole checks if the given role is a valid MessageRole.
func isValidMessageRole(role MessageRole) bool {
	switch role {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	default:
		return false
	}
}
