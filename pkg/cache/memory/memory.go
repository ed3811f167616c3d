// Package memory provides the process-local (L2) cache layer.
package memory

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pario-ai/switchboard/pkg/models"
)

// Cache is a bounded LRU cache whose entries expire a fixed TTL after insertion.
// It is safe for concurrent use.
type Cache struct {
	lru    *expirable.LRU[string, models.CacheEntry]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache holding at most capacity entries for ttl each.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[string, models.CacheEntry](capacity, nil, ttl)}
}

// Get returns the entry for key. Missing and expired entries are absent.
func (c *Cache) Get(key string) (models.CacheEntry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return models.CacheEntry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

// Set stores entry under key, overwriting any previous value and resetting its TTL.
// The least recently used entry is evicted when the cache is full.
func (c *Cache) Set(key string, entry models.CacheEntry) {
	c.lru.Add(key, entry)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries: int64(c.lru.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
