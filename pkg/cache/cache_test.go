package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleCache_Basics(t *testing.T) {
	c, err := NewSimple[string]()
	require.NoError(t, err)
	defer c.Close()

	created, err := c.Set("a", "one")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.Set("a", "two")
	require.NoError(t, err)
	assert.False(t, created, "second set of same key updates")

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "two", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	existed, err := c.Delete("a")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 0, c.Size())
}

func TestCache_EmptyKeyRejected(t *testing.T) {
	c, err := NewSimple[int]()
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("", 1)
	assert.Error(t, err)
}

func TestLRUCache_EvictsOldest(t *testing.T) {
	var evictedKeys []string
	c, err := NewLRU[int](2, WithEvictionCallback[int](func(key string, _ int) {
		evictedKeys = append(evictedKeys, key)
	}))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("a", 1)
	require.NoError(t, err)
	_, err = c.Set("b", 2)
	require.NoError(t, err)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	_, err = c.Set("c", 3)
	require.NoError(t, err)

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry should be gone")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []string{"b"}, evictedKeys)
	assert.Equal(t, int64(1), c.Stats().Evictions())
}

func TestLRUCache_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewLRU[int](0)
	assert.Error(t, err)
}

func TestTTLCache_ExpiresEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewTTL[string](ctx, 20*time.Millisecond, WithSweepInterval[string](time.Hour))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("key", "value")
	require.NoError(t, err)

	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	time.Sleep(30 * time.Millisecond)

	_, ok = c.Get("key")
	assert.False(t, ok, "expired entry must never be returned")
	assert.Equal(t, 0, c.Size())
}

func TestTTLCache_SetRefreshesExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewTTL[int](ctx, 40*time.Millisecond, WithSweepInterval[int](time.Hour))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Set("key", 1)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	_, err = c.Set("key", 2)
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	got, ok := c.Get("key")
	assert.True(t, ok, "refreshed entry should still be live")
	assert.Equal(t, 2, got)
}

func TestTTLCache_CloseIsIdempotent(t *testing.T) {
	c, err := NewTTL[string](context.Background(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestStatistics_HitRate(t *testing.T) {
	s := NewStatistics()
	assert.Equal(t, 0.0, s.HitRate())

	s.Hit()
	s.Hit()
	s.Miss()
	assert.InDelta(t, 2.0/3.0, s.HitRate(), 1e-9)
}
