package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
)

// SkillPackContentStore defines the interface for skill-pack content
// persistence. Content is written once per version when a pack is published
// and only ever read afterwards.
// Version: 1.0
type SkillPackContentStore interface {
	// UpsertContent stores the content blob for a skill pack, computing the
	// integrity hash over the serialized content. Publishing a new blob for
	// the same pack replaces the previous one.
	UpsertContent(
		ctx context.Context,
		skillPackID uuid.UUID,
		content json.RawMessage,
	) (*domain.SkillPackContent, error)

	// GetContentByIDs retrieves content blobs for the given skill pack IDs.
	// IDs with no stored content are simply absent from the result; the
	// method only fails on a store-level I/O error.
	GetContentByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.SkillPackContent, error)
}
