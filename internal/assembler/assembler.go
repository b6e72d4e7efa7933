// Package assembler merges purchased skill-pack content into a single
// execution context for a model invocation. Missing packs are skipped
// rather than failing the request; only a store-level I/O failure aborts
// assembly.
package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supermodelai/supermodel-api/internal/domain"
	"github.com/supermodelai/supermodel-api/internal/store"
)

// ErrContentFetch is returned when skill-pack content cannot be read from
// the store. It marks a store-level I/O failure, never a missing record,
// and is terminal for the requesting task (no retry).
var ErrContentFetch = errors.New("failed to fetch skill pack content")

// cacheTTL bounds how long resolved content stays in the read-through
// cache. Content is immutable per version, so staleness only matters
// across republishes.
const cacheTTL = 15 * time.Minute

// Cache is an optional read-through cache for resolved content blobs,
// keyed by skill-pack ID.
type Cache interface {
	// Get retrieves a cached value. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Context is the assembled execution context for one model invocation.
type Context struct {
	// Text is the concatenated content of all resolved skill packs, in
	// caller-supplied ID order.
	Text string

	// UsedIDs lists the skill-pack IDs that actually resolved, in
	// caller-supplied order. Callers report these back so the requester
	// knows which packs enriched the invocation.
	UsedIDs []uuid.UUID
}

// Assembler resolves skill-pack content and concatenates it into a single
// context block.
type Assembler struct {
	contents store.SkillPackContentStore
	cache    Cache
	logger   *slog.Logger
}

// New creates an Assembler. The cache is optional; pass nil to read
// straight through to the store.
func New(contents store.SkillPackContentStore, cache Cache, logger *slog.Logger) *Assembler {
	return &Assembler{
		contents: contents,
		cache:    cache,
		logger:   logger.With("component", "assembler"),
	}
}

// Assemble fetches content for each skill-pack ID and concatenates the
// resolved blobs in caller-supplied order. IDs that do not resolve are
// skipped; the returned Context reports which IDs were used. Returns an
// error wrapping ErrContentFetch only on a store-level I/O failure.
func (a *Assembler) Assemble(ctx context.Context, ids []uuid.UUID) (*Context, error) {
	if len(ids) == 0 {
		return &Context{}, nil
	}

	resolved := make(map[uuid.UUID]json.RawMessage, len(ids))

	// Serve what we can from the cache first.
	missing := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if blob, ok := a.cachedContent(ctx, id); ok {
			resolved[id] = blob
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := a.contents.GetContentByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContentFetch, err)
		}

		for _, spc := range fetched {
			resolved[spc.SkillPackID] = spc.Content
			a.cacheContent(ctx, spc)
		}
	}

	var blocks []string
	var usedIDs []uuid.UUID
	for _, id := range ids {
		blob, ok := resolved[id]
		if !ok {
			a.logger.WarnContext(ctx, "skill pack content not found, skipping",
				"skill_pack_id", id)
			continue
		}
		blocks = append(blocks, string(blob))
		usedIDs = append(usedIDs, id)
	}

	return &Context{
		Text:    strings.Join(blocks, "\n"),
		UsedIDs: usedIDs,
	}, nil
}

// cachedContent returns the cached blob for the given pack, if any.
// Cache failures are logged and treated as misses.
func (a *Assembler) cachedContent(ctx context.Context, id uuid.UUID) (json.RawMessage, bool) {
	if a.cache == nil {
		return nil, false
	}

	data, ok, err := a.cache.Get(ctx, id.String())
	if err != nil {
		a.logger.WarnContext(ctx, "cache read failed", "skill_pack_id", id, "error", err)
		return nil, false
	}
	return data, ok
}

// cacheContent stores a freshly fetched blob. Cache failures are logged
// and otherwise ignored.
func (a *Assembler) cacheContent(ctx context.Context, spc *domain.SkillPackContent) {
	if a.cache == nil {
		return
	}

	if err := a.cache.Set(ctx, spc.SkillPackID.String(), spc.Content, cacheTTL); err != nil {
		a.logger.WarnContext(ctx, "cache write failed",
			"skill_pack_id", spc.SkillPackID, "error", err)
	}
}
