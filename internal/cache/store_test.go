package cache_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
)

type testEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier int    `json:"tier"`
}

func setupTestStore(t *testing.T, maxBytes int64) (*cache.Store, func()) {
	t.Helper()

	s, err := cache.Open(cache.Options{InMemory: true, MaxBytes: maxBytes})
	require.NoError(t, err)

	return s, func() { _ = s.Close() }
}

func TestStore_PutGet(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "products", "1", []byte(`{"id":1}`)))

	got, err := s.Get(ctx, "products", "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(got))
}

func TestStore_GetMissing(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()

	_, err := s.Get(context.Background(), "products", "404")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestStore_PutIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	for range 3 {
		require.NoError(t, s.Put(ctx, "brands", "casper", []byte(`{"id":"casper"}`)))
	}

	count := 0
	for _, err := range s.List(ctx, "brands") {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)

	used, _ := s.Usage()
	assert.Equal(t, int64(len("brands:casper")+len(`{"id":"casper"}`)), used)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "reviews", "1", []byte(`{}`)))
	require.NoError(t, s.Delete(ctx, "reviews", "1"))
	require.NoError(t, s.Delete(ctx, "reviews", "1"))

	_, err := s.Get(ctx, "reviews", "1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	used, _ := s.Usage()
	assert.Zero(t, used)
}

func TestStore_ListScopesToCollection(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "products", "1", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "products", "2", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "_pending", "products:1", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "profiles", "u1", []byte(`{}`)))

	var keys []string
	for entry, err := range s.List(ctx, "products") {
		require.NoError(t, err)
		keys = append(keys, entry.Key)
	}
	assert.Equal(t, []string{"1", "2"}, keys)

	// Restartable.
	again := 0
	for range s.List(ctx, "products") {
		again++
	}
	assert.Equal(t, 2, again)

	counts, err := s.CountByCollection(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"products": 2, "_pending": 1, "profiles": 1}, counts)
}

func TestStore_QuotaExceeded(t *testing.T) {
	s, cleanup := setupTestStore(t, 64)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chat_history", "u1", []byte(`{"m":1}`)))

	err := s.Put(ctx, "chat_history", "u2", []byte(strings.Repeat("x", 100)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrStorageFull)

	// The rejected write was not applied, the earlier one survives.
	_, err = s.Get(ctx, "chat_history", "u2")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = s.Get(ctx, "chat_history", "u1")
	assert.NoError(t, err)
}

func TestStore_QuotaCountsReplacementDelta(t *testing.T) {
	s, cleanup := setupTestStore(t, 40)
	defer cleanup()
	ctx := context.Background()

	value := []byte(strings.Repeat("a", 25))
	require.NoError(t, s.Put(ctx, "profiles", "u1", value))
	// Overwriting with the same size must not double count.
	require.NoError(t, s.Put(ctx, "profiles", "u1", value))
}

func TestCollection_TypedRoundTrip(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	c := cache.NewCollection[testEntity](s, "things")
	require.NoError(t, c.Put(ctx, "a", &testEntity{ID: "a", Name: "Alpha", Tier: 1}))
	require.NoError(t, c.Put(ctx, "b", &testEntity{ID: "b", Name: "Beta", Tier: 2}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)

	var tierTwo []string
	for e, err := range c.List(ctx, func(e *testEntity) bool { return e.Tier == 2 }) {
		require.NoError(t, err)
		tierTwo = append(tierTwo, e.ID)
	}
	assert.Equal(t, []string{"b"}, tierTwo)
}

func TestCollection_CorruptEntryIsDeserializationError(t *testing.T) {
	s, cleanup := setupTestStore(t, 0)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "things", "bad", []byte(`{not json`)))
	require.NoError(t, s.Put(ctx, "things", "good", []byte(`{"id":"good"}`)))

	c := cache.NewCollection[testEntity](s, "things")

	_, err := c.Get(ctx, "bad")
	assert.ErrorIs(t, err, domainerrors.ErrDeserialization)
	assert.True(t, domainerrors.IsCacheMiss(err))

	var good []string
	corrupt := 0
	for e, err := range c.List(ctx, nil) {
		if err != nil {
			corrupt++
			continue
		}
		good = append(good, e.ID)
	}
	assert.Equal(t, 1, corrupt)
	assert.Equal(t, []string{"good"}, good)
}
