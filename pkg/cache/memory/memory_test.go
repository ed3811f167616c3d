package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/switchboard/pkg/models"
)

func entry(answer string) models.CacheEntry {
	return models.CacheEntry{Answer: answer, Sources: []string{"billing"}, Confidence: 0.9}
}

func TestSetAndGet(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("k", entry("hello"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Answer)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("k", entry("old"))
	c.Set("k", entry("new"))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got.Answer)
	assert.Equal(t, 1, c.Len())
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 3
	c := New(capacity, time.Hour)
	for i := 0; i < capacity; i++ {
		c.Set(fmt.Sprintf("k%d", i), entry("v"))
	}

	// Touch k0 so k1 becomes the least recently used entry.
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k3", entry("v"))
	assert.Equal(t, capacity, c.Len())

	evicted := 0
	for i := 0; i <= capacity; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			evicted++
		}
	}
	assert.Equal(t, 1, evicted, "exactly one entry should be evicted")

	_, ok = c.Get("k1")
	assert.False(t, ok, "k1 was least recently used and should be evicted")
}

func TestTTLExpiration(t *testing.T) {
	c := New(10, 20*time.Millisecond)
	c.Set("k", entry("v"))

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "expected miss after TTL expiration")
}

func TestSetResetsTTL(t *testing.T) {
	c := New(10, 200*time.Millisecond)
	c.Set("k", entry("v1"))
	time.Sleep(120 * time.Millisecond)
	c.Set("k", entry("v2"))
	time.Sleep(120 * time.Millisecond)

	got, ok := c.Get("k")
	require.True(t, ok, "overwrite should reset TTL")
	assert.Equal(t, "v2", got.Answer)
}

func TestClear(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("a", entry("v"))
	c.Set("b", entry("v"))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("a", entry("v"))
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(100, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (n+j)%50)
				c.Set(key, entry(key))
				if got, ok := c.Get(key); ok {
					assert.Equal(t, key, got.Answer)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
}
