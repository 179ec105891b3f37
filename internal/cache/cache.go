// Package cache provides the Redis and in-process price caches.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/price-oracle/internal/logging"
	"github.com/price-oracle/internal/models"
)

// Cache stores JSON-encoded values under string keys with a TTL.
// Get reports (false, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PriceKey builds the cache key for a resolved price lookup.
func PriceKey(token string, network models.Network, ts int64) string {
	return fmt.Sprintf("price:%s:%s:%d", token, network, ts)
}

// DualCache tries the Redis backend first and falls back to the in-process
// cache on any backend error. Entries written to one backend are not copied
// to the other; after a Redis outage the caches may briefly disagree, which
// TTL expiry resolves.
type DualCache struct {
	remote   Cache
	fallback *MemoryCache
}

// NewDualCache creates a cache backed by remote with an in-process
// fallback. remote may be nil, in which case every operation goes straight
// to the fallback.
func NewDualCache(remote Cache, fallback *MemoryCache) *DualCache {
	if fallback == nil {
		fallback = NewMemoryCache()
	}
	return &DualCache{remote: remote, fallback: fallback}
}

func (c *DualCache) logFallback(ctx context.Context, op string, err error) {
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	}).Warn("redis cache unavailable, using in-process fallback")
}

// Get retrieves a cached value into dest, reporting whether it was found
func (c *DualCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.remote != nil {
		found, err := c.remote.Get(ctx, key, dest)
		if err == nil {
			return found, nil
		}
		c.logFallback(ctx, "Get", err)
	}
	return c.fallback.Get(ctx, key, dest)
}

// Set stores a value under key for ttl
func (c *DualCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.remote != nil {
		err := c.remote.Set(ctx, key, value, ttl)
		if err == nil {
			return nil
		}
		c.logFallback(ctx, "Set", err)
	}
	return c.fallback.Set(ctx, key, value, ttl)
}

// Delete removes a key
func (c *DualCache) Delete(ctx context.Context, key string) error {
	if c.remote != nil {
		err := c.remote.Delete(ctx, key)
		if err == nil {
			return nil
		}
		c.logFallback(ctx, "Delete", err)
	}
	return c.fallback.Delete(ctx, key)
}
