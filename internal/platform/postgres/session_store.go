package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/platform/logger"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// PostgresSessionStore implements the store.SessionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSessionStore creates a new PostgreSQL implementation of the SessionStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresSessionStore(db store.DBTX, logger *slog.Logger) *PostgresSessionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "session_store")),
	}
}

// Ensure PostgresSessionStore implements store.SessionStore interface
var _ store.SessionStore = (*PostgresSessionStore)(nil)

// CreateSession implements store.SessionStore.CreateSession
func (s *PostgresSessionStore) CreateSession(ctx context.Context, session *domain.Session) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := session.Validate(); err != nil {
		log.Warn("session validation failed during create",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return err
	}

	query := `
		INSERT INTO sessions (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.OwnerID,
		session.Title,
		session.CreatedAt,
		session.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to create session",
			slog.String("error", err.Error()),
			slog.String("session_id", session.ID.String()))
		return MapError(err)
	}

	log.Debug("session created", slog.String("session_id", session.ID.String()))
	return nil
}

// GetSession implements store.SessionStore.GetSession
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`

	var session domain.Session
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.OwnerID,
		&session.Title,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("session not found", slog.String("session_id", id.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to get session by ID",
			slog.String("error", err.Error()),
			slog.String("session_id", id.String()))
		return nil, MapError(err)
	}

	return &session, nil
}

// AppendMessage implements store.SessionStore.AppendMessage
// Messages are append-only; nothing in this store edits or removes them.
// Returns store.ErrSessionNotFound if the session does not exist.
func (s *PostgresSessionStore) AppendMessage(
	ctx context.Context,
	sessionID uuid.UUID,
	content string,
	role domain.MessageRole,
) (*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	message, err := domain.NewMessage(sessionID, content, role)
	if err != nil {
		log.Warn("message validation failed during append",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, err
	}

	query := `
		INSERT INTO messages (id, session_id, content, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		message.ID,
		message.SessionID,
		message.Content,
		message.Role,
		message.CreatedAt,
	)

	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("append to missing session",
				slog.String("session_id", sessionID.String()))
			return nil, store.ErrSessionNotFound
		}
		log.Error("failed to append message",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, MapError(err)
	}

	log.Debug("message appended",
		slog.String("session_id", sessionID.String()),
		slog.String("message_id", message.ID.String()),
		slog.String("role", string(role)))
	return message, nil
}

// ListMessages implements store.SessionStore.ListMessages
// Messages are returned in creation order.
func (s *PostgresSessionStore) ListMessages(
	ctx context.Context,
	sessionID uuid.UUID,
) ([]*domain.Message, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, session_id, content, role, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		log.Error("failed to query messages",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	messages := []*domain.Message{}
	for rows.Next() {
		var message domain.Message
		if err := rows.Scan(
			&message.ID,
			&message.SessionID,
			&message.Content,
			&message.Role,
			&message.CreatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return messages, nil
}

// AttachSkillPack implements store.SessionStore.AttachSkillPack
// Attaching the same pack twice is a no-op.
func (s *PostgresSessionStore) AttachSkillPack(
	ctx context.Context,
	sessionID, skillPackID uuid.UUID,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO session_skill_packs (session_id, skill_pack_id, attached_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id, skill_pack_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, sessionID, skillPackID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return store.ErrSessionNotFound
		}
		log.Error("failed to attach skill pack",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()),
			slog.String("skill_pack_id", skillPackID.String()))
		return MapError(err)
	}

	return nil
}

// ListSessionSkillPacks implements store.SessionStore.ListSessionSkillPacks
// Pack IDs are returned in attachment order.
func (s *PostgresSessionStore) ListSessionSkillPacks(
	ctx context.Context,
	sessionID uuid.UUID,
) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT skill_pack_id
		FROM session_skill_packs
		WHERE session_id = $1
		ORDER BY attached_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		log.Error("failed to query session skill packs",
			slog.String("error", err.Error()),
			slog.String("session_id", sessionID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return ids, nil
}

// WithTx implements store.SessionStore.WithTx
func (s *PostgresSessionStore) WithTx(tx *sql.Tx) store.SessionStore {
	return &PostgresSessionStore{
		db:     tx,
		logger: s.logger,
	}
}
