package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/cache"
)

func TestTTLCache_GetSet(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](10, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, ok = c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCache_Expiry(t *testing.T) {
	t.Parallel()

	c := cache.New[string, string](10, 10*time.Millisecond)
	c.Set("k", "v")

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire after TTL")
}

func TestTTLCache_ExplicitTTL(t *testing.T) {
	t.Parallel()

	c := cache.New[string, string](10, time.Minute)
	c.SetTTL("short", "v", 10*time.Millisecond)
	c.Set("long", "v")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok)
}

func TestTTLCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c := cache.New[int, int](3, time.Minute)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)

	// Touch 1 so 2 becomes the eviction candidate.
	_, ok := c.Get(1)
	require.True(t, ok)

	c.Set(4, 4)

	_, ok = c.Get(2)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
	_, ok = c.Get(4)
	assert.True(t, ok)
}

func TestTTLCache_DeleteFunc(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](10, time.Minute)
	c.Set("tenant-a/x", 1)
	c.Set("tenant-a/y", 2)
	c.Set("tenant-b/z", 3)

	removed := c.DeleteFunc(func(key string) bool {
		return len(key) > 8 && key[:8] == "tenant-a"
	})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("tenant-b/z")
	assert.True(t, ok)
}

func TestTTLCache_Clear(t *testing.T) {
	t.Parallel()

	c := cache.New[string, int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
