package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/host"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type countingRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *countingRecorder) RecordCacheResult(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func createTestStore(t *testing.T) (*Store, *miniredis.Miniredis, *countingRecorder) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := &countingRecorder{}
	return New(client, logger.NewTestLogger(t), WithRecorder(rec)), mr, rec
}

// ==========================
// Key
// ==========================

func TestKey(t *testing.T) {
	k := Key("LIVE", "SELECT *", "en")
	assert.Regexp(t, `^render:[0-9a-f]{64}$`, k)
	assert.Equal(t, k, Key("LIVE", "SELECT *", "en"))
	assert.NotEqual(t, k, Key("LIVE", "SELECT *", "fr"))
	assert.NotEqual(t, Key("a", "bc"), Key("ab", "c"))
}

// ==========================
// Get / Set
// ==========================

func TestStore_SetAndGet(t *testing.T) {
	store, mr, rec := createTestStore(t)
	ctx := context.Background()
	key := Key("q1")

	_, ok := store.Get(ctx, key)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, `{"nodes":[]}`, time.Minute, host.ForUUID("u1")))

	val, ok := store.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, `{"nodes":[]}`, val)
	assert.Equal(t, []string{ResultMiss, ResultHit}, rec.results)

	mr.FastForward(2 * time.Minute)
	_, ok = store.Get(ctx, key)
	assert.False(t, ok, "entry expires with its ttl")
}

// ==========================
// Flushing
// ==========================

func TestStore_FlushUUID(t *testing.T) {
	store, mr, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "render:a", "A", time.Minute, host.ForUUID("u1")))
	require.NoError(t, store.Set(ctx, "render:b", "B", time.Minute, host.ForUUID("u1"), host.ForUUID("u2")))
	require.NoError(t, store.Set(ctx, "render:c", "C", time.Minute, host.ForUUID("u2")))

	n, err := store.FlushUUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("render:a"))
	assert.False(t, mr.Exists("render:b"))
	assert.True(t, mr.Exists("render:c"))

	n, err = store.FlushUUID(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_FlushPath(t *testing.T) {
	store, mr, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "render:query", "Q", time.Minute, host.FlushOnPathMatching("/sites/test/.*")))
	require.NoError(t, store.Set(ctx, "render:item", "I", time.Minute, host.ForPath("/sites/test/ads/bike")))
	require.NoError(t, store.Set(ctx, "render:other", "O", time.Minute, host.FlushOnPathMatching("/sites/other/.*")))

	n, err := store.FlushPath(ctx, "/sites/test/ads/bike")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, mr.Exists("render:query"))
	assert.False(t, mr.Exists("render:item"))
	assert.True(t, mr.Exists("render:other"))

	patterns, err := mr.Members(patternsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"/sites/other/.*"}, patterns)
}

func TestStore_FlushPath_PrunesExpiredPatterns(t *testing.T) {
	store, mr, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "render:short", "S", time.Minute, host.FlushOnPathMatching("/sites/short/.*")))
	require.NoError(t, store.Set(ctx, "render:long", "L", time.Hour, host.FlushOnPathMatching("/sites/long/.*")))
	mr.FastForward(2 * time.Minute)

	n, err := store.FlushPath(ctx, "/sites/unrelated")
	require.NoError(t, err)
	assert.Zero(t, n)

	patterns, err := mr.Members(patternsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"/sites/long/.*"}, patterns)
	assert.True(t, mr.Exists("render:long"))
}

func TestStore_FlushPath_IgnoresBrokenPattern(t *testing.T) {
	store, mr, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "render:x", "X", time.Minute, host.FlushOnPathMatching("/sites/[")))

	n, err := store.FlushPath(ctx, "/sites/a")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, mr.Exists("render:x"))
	assert.False(t, mr.Exists(patternsKey), "uncompilable pattern is dropped from the index")
}

// ==========================
// Redis failures
// ==========================

func TestStore_GetDegradesOnError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := &countingRecorder{}
	store := New(db, logger.NewTestLogger(t), WithRecorder(rec))

	mock.ExpectGet("render:k").SetErr(errors.New("connection refused"))

	val, ok := store.Get(context.Background(), "render:k")
	assert.False(t, ok)
	assert.Empty(t, val)
	assert.Equal(t, []string{ResultError}, rec.results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FlushUUIDReportsError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := New(db, logger.NewTestLogger(t))

	mock.ExpectSMembers(uuidDepPrefix + "u1").SetErr(errors.New("connection refused"))

	_, err := store.FlushUUID(context.Background(), "u1")
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
