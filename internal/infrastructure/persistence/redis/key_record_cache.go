// Package redis provides a read-through Redis cache in front of the
// key-record store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benzaiten/metrics-gate/internal/config"
	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/repository"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

const keyPrefix = "bztn:key_record:"

// NewClient builds the Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// KeyRecordCache decorates a KeyRecordStore with a Redis read-through cache.
// Hits skip the store; misses fall through and populate the cache with a TTL.
// Missing keys are not cached, so a freshly provisioned key works without
// waiting out a negative entry. Cache faults degrade to the inner store.
type KeyRecordCache struct {
	inner  repository.KeyRecordStore
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewKeyRecordCache wraps a store with the Redis cache.
func NewKeyRecordCache(inner repository.KeyRecordStore, client *redis.Client, ttl time.Duration, log logger.Logger) repository.KeyRecordStore {
	return &KeyRecordCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: log.WithComponent("redis_cache"),
	}
}

// Get implements repository.KeyRecordStore.
func (c *KeyRecordCache) Get(ctx context.Context, apiKey string) (*models.KeyRecord, error) {
	cacheKey := keyPrefix + apiKey

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var record models.KeyRecord
		if jsonErr := json.Unmarshal(data, &record); jsonErr == nil {
			return &record, nil
		}
		// An unreadable entry is stale garbage; drop it and fall through.
		c.client.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn(ctx, "cache read failed, falling through", logger.Fields{"error": err.Error()})
	}

	record, err := c.inner.Get(ctx, apiKey)
	if err != nil || record == nil {
		return record, err
	}

	if data, jsonErr := json.Marshal(record); jsonErr == nil {
		if setErr := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn(ctx, "cache write failed", logger.Fields{"error": setErr.Error()})
		}
	}
	return record, nil
}

// Invalidate drops one key's cache entry. Used by operational tooling after a
// key record changes upstream.
func (c *KeyRecordCache) Invalidate(ctx context.Context, apiKey string) error {
	return c.client.Del(ctx, keyPrefix+apiKey).Err()
}
