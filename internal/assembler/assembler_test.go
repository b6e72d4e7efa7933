package assembler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermodelai/supermodel-api/internal/domain"
)

// mockContentStore implements store.SkillPackContentStore with pluggable behavior.
type mockContentStore struct {
	contents map[uuid.UUID]json.RawMessage
	fetchErr error
	calls    int
}

func (m *mockContentStore) UpsertContent(
	_ context.Context,
	skillPackID uuid.UUID,
	content json.RawMessage,
) (*domain.SkillPackContent, error) {
	return domain.NewSkillPackContent(skillPackID, content)
}

func (m *mockContentStore) GetContentByIDs(
	_ context.Context,
	ids []uuid.UUID,
) ([]*domain.SkillPackContent, error) {
	m.calls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	var result []*domain.SkillPackContent
	for _, id := range ids {
		if content, ok := m.contents[id]; ok {
			spc, _ := domain.NewSkillPackContent(id, content)
			result = append(result, spc)
		}
	}
	return result, nil
}

// mapCache is a trivial Cache backed by a map.
type mapCache struct {
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAssemble_SkipsMissingPacks(t *testing.T) {
	t.Parallel()

	idA := uuid.New()
	idB := uuid.New()
	contentStore := &mockContentStore{
		contents: map[uuid.UUID]json.RawMessage{
			idA: json.RawMessage(`{"prompts":["x"]}`),
		},
	}

	a := New(contentStore, nil, testLogger())

	result, err := a.Assemble(context.Background(), []uuid.UUID{idA, idB})
	require.NoError(t, err, "a missing pack must not fail assembly")
	assert.Equal(t, `{"prompts":["x"]}`, result.Text)
	assert.Equal(t, []uuid.UUID{idA}, result.UsedIDs)
}

func TestAssemble_PreservesCallerOrder(t *testing.T) {
	t.Parallel()

	idA := uuid.New()
	idB := uuid.New()
	contentStore := &mockContentStore{
		contents: map[uuid.UUID]json.RawMessage{
			idA: json.RawMessage(`{"a":1}`),
			idB: json.RawMessage(`{"b":2}`),
		},
	}

	a := New(contentStore, nil, testLogger())

	result, err := a.Assemble(context.Background(), []uuid.UUID{idB, idA})
	require.NoError(t, err)
	assert.Equal(t, "{\"b\":2}\n{\"a\":1}", result.Text)
	assert.Equal(t, []uuid.UUID{idB, idA}, result.UsedIDs)
}

func TestAssemble_StoreFailure(t *testing.T) {
	t.Parallel()

	contentStore := &mockContentStore{fetchErr: errors.New("connection refused")}
	a := New(contentStore, nil, testLogger())

	_, err := a.Assemble(context.Background(), []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrContentFetch)
}

func TestAssemble_EmptyIDs(t *testing.T) {
	t.Parallel()

	contentStore := &mockContentStore{}
	a := New(contentStore, nil, testLogger())

	result, err := a.Assemble(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.Empty(t, result.UsedIDs)
	assert.Zero(t, contentStore.calls, "no store fetch expected for empty input")
}

func TestAssemble_ReadThroughCache(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	contentStore := &mockContentStore{
		contents: map[uuid.UUID]json.RawMessage{
			id: json.RawMessage(`{"prompts":["x"]}`),
		},
	}
	cache := &mapCache{data: make(map[string][]byte)}

	a := New(contentStore, cache, testLogger())

	// First call fetches from the store and populates the cache.
	result, err := a.Assemble(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, `{"prompts":["x"]}`, result.Text)
	assert.Equal(t, 1, contentStore.calls)

	// Second call is served entirely from the cache.
	result, err = a.Assemble(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	assert.Equal(t, `{"prompts":["x"]}`, result.Text)
	assert.Equal(t, 1, contentStore.calls, "cached content should not hit the store")
}
