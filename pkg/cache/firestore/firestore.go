// Package firestore implements the durable (L1) cache layer on Cloud Firestore.
// Each entry is a document keyed by the cache key inside a single collection.
package firestore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pario-ai/switchboard/pkg/cache"
	"github.com/pario-ai/switchboard/pkg/models"
)

// document is the stored shape. expires_at can back a Firestore TTL policy.
type document struct {
	Value     models.CacheEntry `firestore:"value"`
	CreatedAt time.Time         `firestore:"created_at"`
	ExpiresAt time.Time         `firestore:"expires_at"`
}

// Cache is a durable answer cache backed by a Firestore collection.
type Cache struct {
	client     *firestore.Client
	collection *firestore.CollectionRef
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

// New connects to Firestore in projectID and uses the named collection.
// FIRESTORE_EMULATOR_HOST is honored by the client library.
func New(ctx context.Context, projectID, collection string, ttl time.Duration) (*Cache, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Cache{
		client:     client,
		collection: client.Collection(collection),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Get retrieves a cached entry. Missing or expired documents are reported as not found.
func (c *Cache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	snap, err := c.collection.Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		c.misses.Add(1)
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false, fmt.Errorf("%w: firestore get: %v", cache.ErrUnavailable, err)
	}

	var doc document
	if err := snap.DataTo(&doc); err != nil {
		c.misses.Add(1)
		return models.CacheEntry{}, false, fmt.Errorf("%w: decode document: %v", cache.ErrUnavailable, err)
	}
	if !doc.ExpiresAt.IsZero() && !c.now().Before(doc.ExpiresAt) {
		c.misses.Add(1)
		return models.CacheEntry{}, false, nil
	}

	c.hits.Add(1)
	return doc.Value, true, nil
}

// Set overwrites the document for key.
func (c *Cache) Set(ctx context.Context, key string, entry models.CacheEntry) error {
	now := c.now().UTC()
	_, err := c.collection.Doc(key).Set(ctx, document{
		Value:     entry,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		return fmt.Errorf("%w: firestore set: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Stats counts the documents in the collection.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	res, err := c.collection.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	var count int64
	if v, ok := res["all"].(interface{ GetIntegerValue() int64 }); ok {
		count = v.GetIntegerValue()
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear deletes every document in the collection. It is not safe to run
// while other instances are writing.
func (c *Cache) Clear(ctx context.Context) error {
	bw := c.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob

	it := c.collection.Documents(ctx)
	defer it.Stop()
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("cache clear: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("cache clear: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	return nil
}

// Close releases the Firestore client.
func (c *Cache) Close() error {
	return c.client.Close()
}
