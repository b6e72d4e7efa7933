package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
)

// SessionStore defines the interface for session and message persistence.
// Messages are append-only: this subsystem never edits or removes them.
// Version: 1.0
type SessionStore interface {
	// CreateSession saves a new conversation session to the store.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by its unique ID.
	// Returns ErrSessionNotFound if the session does not exist.
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// AppendMessage appends a message with the given role and content to
	// the session and returns the persisted message.
	// Returns ErrSessionNotFound if the session does not exist.
	AppendMessage(
		ctx context.Context,
		sessionID uuid.UUID,
		content string,
		role domain.MessageRole,
	) (*domain.Message, error)

	// ListMessages retrieves all messages in the session ordered by
	// creation time. Returns an empty slice for a session with no messages.
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*domain.Message, error)

	// AttachSkillPack associates a purchased skill pack with the session.
	// Attaching the same pack twice is a no-op.
	AttachSkillPack(ctx context.Context, sessionID, skillPackID uuid.UUID) error

	// ListSessionSkillPacks returns the IDs of skill packs attached to the
	// session in attachment order.
	ListSessionSkillPacks(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)

	// WithTx returns a new SessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SessionStore
}
