package store

import (
	"context"
	"errors"
	"testing"
	"tgmed/internal/models"
	"tgmed/internal/testutil"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts calls reaching the wrapped store.
type countingStore struct {
	DocumentStore
	gets      int
	updateErr error
}

func (c *countingStore) Get(ctx context.Context, tgid string) (*models.UserRecord, error) {
	c.gets++
	return c.DocumentStore.Get(ctx, tgid)
}

func (c *countingStore) Update(ctx context.Context, rec *models.UserRecord, fields ...models.Field) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	return c.DocumentStore.Update(ctx, rec, fields...)
}

func newCachedFixture(t *testing.T) (*CachedStore, *countingStore, *testutil.MockCache) {
	t.Helper()
	inner := &countingStore{DocumentStore: NewMemoryStore(&testutil.MockLogger{})}
	cache := testutil.NewMockCache()
	compressor, err := NewZstdCompressor()
	require.NoError(t, err)
	return NewCachedStore(inner, cache, compressor, &testutil.MockLogger{}), inner, cache
}

func TestCachedStore_InsertPrimesCache(t *testing.T) {
	s, inner, cache := newCachedFixture(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, models.NewUserRecord("1", time.Now())))
	assert.Contains(t, cache.Data, "record:1")

	_, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, inner.gets)
}

func TestCachedStore_MissReadsThrough(t *testing.T) {
	s, inner, cache := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, models.NewUserRecord("2", time.Now())))

	_, err := s.Get(ctx, "2")
	require.NoError(t, err)
	_, err = s.Get(ctx, "2")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Contains(t, cache.Data, "record:2")
}

func TestCachedStore_UpdateRefreshesSnapshot(t *testing.T) {
	s, _, _ := newCachedFixture(t)
	ctx := context.Background()
	rec := models.NewUserRecord("3", time.Now())
	require.NoError(t, s.Insert(ctx, rec))

	rec.Profile = map[string]any{"weight": float64(70)}
	require.NoError(t, s.Update(ctx, rec, models.FieldProfile))

	got, err := s.Get(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, float64(70), got.Profile["weight"])
}

func TestCachedStore_FailedUpdateEvicts(t *testing.T) {
	s, inner, cache := newCachedFixture(t)
	ctx := context.Background()
	rec := models.NewUserRecord("4", time.Now())
	require.NoError(t, s.Insert(ctx, rec))

	inner.updateErr = errors.New("boom")
	err := s.Update(ctx, rec, models.FieldProfile)
	assert.Error(t, err)
	assert.NotContains(t, cache.Data, "record:4")
}

func TestCachedStore_DuplicateInsertEvicts(t *testing.T) {
	s, inner, cache := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, models.NewUserRecord("5", time.Now())))
	cache.Data["record:5"] = []byte("stale")

	err := s.Insert(ctx, models.NewUserRecord("5", time.Now()))
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NotContains(t, cache.Data, "record:5")
}

func TestCachedStore_CorruptEntryFallsBack(t *testing.T) {
	s, inner, cache := newCachedFixture(t)
	ctx := context.Background()
	require.NoError(t, inner.Insert(ctx, models.NewUserRecord("6", time.Now())))
	cache.Data["record:6"] = []byte("not zstd")

	got, err := s.Get(ctx, "6")
	require.NoError(t, err)
	assert.Equal(t, "6", got.TgID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedStore_CachedRecordHasDefaults(t *testing.T) {
	inner := NewMemoryStore(&testutil.MockLogger{})
	cache := testutil.NewMockCache()
	s := NewCachedStore(inner, cache, &testutil.MockCompressor{}, &testutil.MockLogger{})
	cache.Data["record:7"] = []byte(`{"tgid":"7","profile":null}`)

	got, err := s.Get(context.Background(), "7")
	require.NoError(t, err)
	assert.NotNil(t, got.Profile)
	assert.NotNil(t, got.RecommendationCache)
}
