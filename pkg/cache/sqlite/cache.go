// Package sqlite implements the durable (L1) cache layer on a local SQLite
// database, for single-host deployments and development.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/switchboard/pkg/cache"
	"github.com/pario-ai/switchboard/pkg/models"
)

// Cache is a durable answer cache backed by SQLite.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	entry BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// New creates a Cache with the given database path and entry TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get retrieves a cached entry. Missing or expired entries are reported as not found.
func (c *Cache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var raw []byte
	var expiresAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT entry, expires_at FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.misses.Add(1)
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false, fmt.Errorf("%w: sqlite get: %v", cache.ErrUnavailable, err)
	}

	if c.now().UnixMilli() >= expiresAt {
		c.misses.Add(1)
		return models.CacheEntry{}, false, nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false, fmt.Errorf("%w: decode entry: %v", cache.ErrUnavailable, err)
	}

	c.hits.Add(1)
	return entry, true, nil
}

// Set stores an entry in the cache, replacing any existing one.
func (c *Cache) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	now := c.now()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (cache_key, entry, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		key, raw, now.UnixMilli(), now.Add(c.ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: sqlite set: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes all cache entries.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// ClearExpired removes expired entries and reports how many were deleted.
func (c *Cache) ClearExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
