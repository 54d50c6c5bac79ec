// Package cache provides an in-process key-record cache layered in front of
// the remote stores. It absorbs hot-key traffic without a network hop.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/repository"
)

// LocalKeyRecordCache decorates a KeyRecordStore with a short-TTL in-memory
// cache. Missing keys are not cached.
type LocalKeyRecordCache struct {
	inner repository.KeyRecordStore
	cache *gocache.Cache
}

// NewLocalKeyRecordCache wraps a store with an in-process cache. The TTL
// should stay short; key revocation upstream is only visible after expiry.
func NewLocalKeyRecordCache(inner repository.KeyRecordStore, ttl, cleanupInterval time.Duration) *LocalKeyRecordCache {
	return &LocalKeyRecordCache{
		inner: inner,
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Get implements repository.KeyRecordStore.
func (c *LocalKeyRecordCache) Get(ctx context.Context, apiKey string) (*models.KeyRecord, error) {
	if v, ok := c.cache.Get(apiKey); ok {
		record := v.(models.KeyRecord)
		return &record, nil
	}

	record, err := c.inner.Get(ctx, apiKey)
	if err != nil || record == nil {
		return record, err
	}

	// Stored by value so callers cannot mutate the cached copy.
	c.cache.SetDefault(apiKey, *record)
	return record, nil
}

// Flush empties the cache.
func (c *LocalKeyRecordCache) Flush() {
	c.cache.Flush()
}
