// Package cache defines the cache key derivation and the contracts shared by
// the process-local (L2) and durable (L1) cache layers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pario-ai/switchboard/pkg/models"
)

// ErrUnavailable marks durable cache failures caused by the backing store
// being unreachable or failing. Callers treat it as a miss.
var ErrUnavailable = errors.New("cache unavailable")

// Local is a process-local cache.
type Local interface {
	Get(key string) (models.CacheEntry, bool)
	Set(key string, entry models.CacheEntry)
	Clear()
}

// Durable is a cache shared across processes.
type Durable interface {
	// Get returns the entry for key. found is false on a miss or an expired
	// entry; a non-nil error wraps ErrUnavailable.
	Get(ctx context.Context, key string) (entry models.CacheEntry, found bool, err error)
	// Set overwrites the entry for key and resets its expiry.
	Set(ctx context.Context, key string, entry models.CacheEntry) error
}

// Admin is implemented by durable caches that support maintenance commands.
type Admin interface {
	Stats(ctx context.Context) (models.CacheStats, error)
	Clear(ctx context.Context) error
	Close() error
}

// canonicalPlan is the serialized form hashed into a cache key. Field order
// is fixed by the struct; sources are sorted and deduplicated.
type canonicalPlan struct {
	Query   string   `json:"query"`
	Sources []string `json:"sources"`
	User    string   `json:"user"`
}

// Canonical returns the canonical JSON form of a plan.
func Canonical(plan models.QueryPlan) []byte {
	sources := make([]string, 0, len(plan.Sources))
	for _, s := range plan.Sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sources = append(sources, s)
		}
	}
	slices.Sort(sources)
	sources = slices.Compact(sources)

	data, _ := json.Marshal(canonicalPlan{
		Query:   normalizeQuery(plan.Query),
		Sources: sources,
		User:    strings.ToLower(strings.TrimSpace(plan.User)),
	})
	return data
}

// Key computes the SHA-256 cache key of a plan's canonical form.
func Key(plan models.QueryPlan) string {
	sum := sha256.Sum256(Canonical(plan))
	return fmt.Sprintf("%x", sum)
}

// normalizeQuery lowercases and collapses whitespace.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
