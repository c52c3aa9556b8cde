package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *MemoryCache {
	t.Helper()
	mc := NewMemory(Config{TTL: time.Minute, CleanupInterval: time.Hour})
	t.Cleanup(func() { mc.Close() })
	return mc
}

// TestMemoryGetSet verifies the round trip and miss behavior.
func TestMemoryGetSet(t *testing.T) {
	mc := newTestMemory(t)
	ctx := context.Background()

	entry, err := mc.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)

	stored := &Entry{
		Key:       Key([]byte("input"), "compress"),
		Operation: "compress",
		Filename:  "report-compressed.pdf",
		Body:      []byte("%PDF-1.4 output"),
	}
	require.NoError(t, mc.Set(ctx, stored))

	got, err := mc.Get(ctx, stored.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "report-compressed.pdf", got.Filename)
	assert.Equal(t, []byte("%PDF-1.4 output"), got.Body)
	assert.Equal(t, time.Minute, got.TTL, "config TTL applied as default")
	assert.False(t, got.StoredAt.IsZero())
}

// TestMemorySetCopiesBody verifies the cache is isolated from caller
// mutation of the artifact bytes.
func TestMemorySetCopiesBody(t *testing.T) {
	mc := newTestMemory(t)
	ctx := context.Background()

	body := []byte("original")
	require.NoError(t, mc.Set(ctx, &Entry{Key: "k", Body: body}))

	body[0] = 'X'

	got, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got.Body)
}

// TestMemoryExpiry verifies expired entries are dropped on read.
func TestMemoryExpiry(t *testing.T) {
	mc := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, &Entry{
		Key:      "k",
		Body:     []byte("x"),
		StoredAt: time.Now().Add(-2 * time.Minute),
		TTL:      time.Minute,
	}))

	got, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, mc.Len())
}

// TestMemoryDeleteAndClear verifies removal operations.
func TestMemoryDeleteAndClear(t *testing.T) {
	mc := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, &Entry{Key: "a", Body: []byte("1")}))
	require.NoError(t, mc.Set(ctx, &Entry{Key: "b", Body: []byte("2")}))
	assert.Equal(t, 2, mc.Len())

	require.NoError(t, mc.Delete(ctx, "a"))
	assert.Equal(t, 1, mc.Len())

	require.NoError(t, mc.Clear(ctx))
	assert.Equal(t, 0, mc.Len())
}

// TestMemoryRemoveExpired verifies the cleanup pass drops only expired
// entries.
func TestMemoryRemoveExpired(t *testing.T) {
	mc := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, &Entry{Key: "fresh", Body: []byte("1")}))
	require.NoError(t, mc.Set(ctx, &Entry{
		Key:      "stale",
		Body:     []byte("2"),
		StoredAt: time.Now().Add(-time.Hour),
		TTL:      time.Minute,
	}))

	mc.removeExpired()

	assert.Equal(t, 1, mc.Len())
	got, _ := mc.Get(ctx, "fresh")
	assert.NotNil(t, got)
}
