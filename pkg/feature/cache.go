package feature

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default cache parameters. The TTL is a safety net only: the registry
// invalidates entries on every mutation, so readers normally observe
// writes immediately.
const (
	DefaultCacheTTL    = 30 * time.Second
	defaultCachePrefix = "feature:snapshot:"
)

// Cache is a best-effort read-through Redis layer for the evaluation path.
// It caches whole feature snapshots keyed by machine name; a Redis outage
// degrades to direct store reads rather than failing evaluations.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	prefix string
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheTTL overrides the snapshot TTL.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCachePrefix overrides the Redis key prefix.
func WithCachePrefix(prefix string) CacheOption {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewCache creates a snapshot cache over the given Redis client and
// underlying source (normally the feature store).
func NewCache(client *redis.Client, source Source, opts ...CacheOption) *Cache {
	if client == nil {
		panic("feature: redis client cannot be nil")
	}
	if source == nil {
		panic("feature: cache source cannot be nil")
	}

	c := &Cache{
		client: client,
		source: source,
		ttl:    DefaultCacheTTL,
		prefix: defaultCachePrefix,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetByName returns the cached snapshot when present, falling back to the
// underlying source and repopulating the cache on a miss.
func (c *Cache) GetByName(ctx context.Context, name string) (Feature, error) {
	payload, err := c.client.Get(ctx, c.key(name)).Bytes()
	if err == nil {
		var f Feature
		if err := json.Unmarshal(payload, &f); err == nil {
			return f, nil
		}
		// Corrupt entry: drop it and fall through to the source.
		_ = c.client.Del(ctx, c.key(name)).Err()
	} else if !errors.Is(err, redis.Nil) {
		// Redis unavailable: serve from the source.
		return c.source.GetByName(ctx, name)
	}

	f, err := c.source.GetByName(ctx, name)
	if err != nil {
		return Feature{}, err
	}

	if payload, err := json.Marshal(f); err == nil {
		_ = c.client.Set(ctx, c.key(name), payload, c.ttl).Err()
	}

	return f, nil
}

// Invalidate drops the cached snapshot for a feature name.
func (c *Cache) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, c.key(name)).Err()
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}
