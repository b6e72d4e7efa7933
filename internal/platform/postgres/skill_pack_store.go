package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/platform/logger"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// PostgresSkillPackContentStore implements the store.SkillPackContentStore
// interface using a PostgreSQL database as the storage backend.
type PostgresSkillPackContentStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSkillPackContentStore creates a new PostgreSQL implementation of the
// SkillPackContentStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresSkillPackContentStore(db store.DBTX, logger *slog.Logger) *PostgresSkillPackContentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSkillPackContentStore{
		db:     db,
		logger: logger.With(slog.String("component", "skill_pack_content_store")),
	}
}

// Ensure PostgresSkillPackContentStore implements store.SkillPackContentStore interface
var _ store.SkillPackContentStore = (*PostgresSkillPackContentStore)(nil)

// UpsertContent implements store.SkillPackContentStore.UpsertContent
// Publishing a new blob for the same pack replaces the previous one and
// refreshes the integrity hash.
func (s *PostgresSkillPackContentStore) UpsertContent(
	ctx context.Context,
	skillPackID uuid.UUID,
	content json.RawMessage,
) (*domain.SkillPackContent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	spc, err := domain.NewSkillPackContent(skillPackID, content)
	if err != nil {
		log.Warn("skill pack content validation failed during upsert",
			slog.String("error", err.Error()),
			slog.String("skill_pack_id", skillPackID.String()))
		return nil, err
	}

	query := `
		INSERT INTO skill_pack_content (skill_pack_id, content, content_hash, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (skill_pack_id) DO UPDATE
		SET content = EXCLUDED.content,
		    content_hash = EXCLUDED.content_hash,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		spc.SkillPackID,
		[]byte(spc.Content),
		spc.ContentHash,
		spc.Version,
		spc.CreatedAt,
		spc.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to upsert skill pack content",
			slog.String("error", err.Error()),
			slog.String("skill_pack_id", skillPackID.String()))
		return nil, MapError(err)
	}

	log.Info("skill pack content published",
		slog.String("skill_pack_id", skillPackID.String()),
		slog.String("content_hash", spc.ContentHash),
		slog.String("version", spc.Version))
	return spc, nil
}

// GetContentByIDs implements store.SkillPackContentStore.GetContentByIDs
// IDs with no stored content are simply absent from the result; only a
// store-level I/O error fails the call.
func (s *PostgresSkillPackContentStore) GetContentByIDs(
	ctx context.Context,
	ids []uuid.UUID,
) ([]*domain.SkillPackContent, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(ids) == 0 {
		return []*domain.SkillPackContent{}, nil
	}

	query := `
		SELECT skill_pack_id, content, content_hash, version, created_at, updated_at
		FROM skill_pack_content
		WHERE skill_pack_id = ANY($1)
	`

	rows, err := s.db.QueryContext(ctx, query, ids)
	if err != nil {
		log.Error("failed to query skill pack content",
			slog.String("error", err.Error()),
			slog.Int("id_count", len(ids)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	contents := []*domain.SkillPackContent{}
	for rows.Next() {
		var spc domain.SkillPackContent
		var content []byte
		if err := rows.Scan(
			&spc.SkillPackID,
			&content,
			&spc.ContentHash,
			&spc.Version,
			&spc.CreatedAt,
			&spc.UpdatedAt,
		); err != nil {
			return nil, MapError(err)
		}
		spc.Content = json.RawMessage(content)
		contents = append(contents, &spc)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return contents, nil
}
