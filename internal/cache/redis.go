package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/vidscribe/internal/domain"
	"github.com/phrazzld/vidscribe/internal/platform/metrics"
	"github.com/redis/go-redis/v9"
)

// RedisCache stores completed records as JSON strings with a TTL.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ResourceCache = (*RedisCache)(nil)

// NewRedisCache creates a RedisCache. Keys are namespaced under prefix.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With("component", "resource_cache"),
	}
}

// Key returns the Redis key for fp: {prefix}:cache:{kind}:{resourceId}:{language}.
func (c *RedisCache) Key(fp domain.Fingerprint) string {
	return fmt.Sprintf("%s:cache:%s:%s:%s", c.prefix, fp.Kind, fp.ResourceID, fp.Language)
}

// Get implements ResourceCache.
func (c *RedisCache) Get(ctx context.Context, fp domain.Fingerprint) (*domain.Resource, error) {
	raw, err := c.client.Get(ctx, c.Key(fp)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, ErrMiss
	}
	if err != nil {
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("cache get %s: %w", fp, err)
	}

	var r domain.Resource
	if err := json.Unmarshal(raw, &r); err != nil || r.Status != domain.StatusCompleted {
		// Unreadable or not a completed snapshot; drop it and fall through to the store.
		c.logger.WarnContext(ctx, "discarding invalid cache entry", "fingerprint", fp.String())
		_ = c.client.Del(ctx, c.Key(fp)).Err()
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, ErrMiss
	}

	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return &r, nil
}

// Set implements ResourceCache.
func (c *RedisCache) Set(ctx context.Context, r *domain.Resource) error {
	if r == nil || r.Status != domain.StatusCompleted {
		return ErrNotCacheable
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", r.Fingerprint(), err)
	}
	if err := c.client.Set(ctx, c.Key(r.Fingerprint()), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", r.Fingerprint(), err)
	}
	return nil
}

// Invalidate implements ResourceCache.
func (c *RedisCache) Invalidate(ctx context.Context, fp domain.Fingerprint) error {
	if err := c.client.Del(ctx, c.Key(fp)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", fp, err)
	}
	return nil
}
