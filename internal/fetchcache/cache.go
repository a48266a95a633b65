package fetchcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "cache:" // Namespaced cache entries: cache:{key}

// Loader fetches the value on a cache miss. It must return the bytes that
// will be served to every deduplicated caller.
type Loader func(ctx context.Context) ([]byte, error)

// Cache is the generic data-fetching layer: a read-through Redis cache with
// time-based staleness and in-flight request deduplication. Redis being down
// degrades it to a pass-through — the loader still runs, nothing is cached.
type Cache struct {
	rdb *redis.Client
	sf  singleflight.Group
	log *zap.Logger
}

func New(rdb *redis.Client, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{rdb: rdb, log: log}
}

// GetOrLoad returns the cached bytes for key if they are still fresh,
// otherwise runs the loader and stores the result with the given TTL.
// Concurrent callers for the same key share a single loader execution.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load Loader) ([]byte, error) {
	if b, ok := c.get(ctx, key); ok {
		return b, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// A concurrent flight may have filled the cache while we waited.
		if b, ok := c.get(ctx, key); ok {
			return b, nil
		}

		b, err := load(ctx)
		if err != nil {
			return nil, err
		}

		c.set(ctx, key, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Refresh unconditionally runs the loader and replaces the cached entry.
// The worker uses it to warm hot keys outside the request path.
func (c *Cache) Refresh(ctx context.Context, key string, ttl time.Duration, load Loader) error {
	b, err := load(ctx)
	if err != nil {
		return err
	}
	c.set(ctx, key, b, ttl)
	return nil
}

// Invalidate drops cache entries after a write so the next read refetches.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.rdb == nil || len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}
	b, err := c.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (c *Cache) set(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+key, b, ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
