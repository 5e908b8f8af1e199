package permissions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Cached decorates an Oracle with a Redis-backed decision cache. The cache
// is an explicit handle owned by the composing service; denials and grants
// are both cached for the configured TTL, so permission revocations take up
// to one TTL to be observed by the engine.
type Cached struct {
	inner  Oracle
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(inner Oracle, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "permission_cache"),
	}
}

func (c *Cached) HasPermission(ctx context.Context, userID, spaceID, permissionKey string) (bool, error) {
	key := "tasklane:perm:" + userID + ":" + spaceID + ":" + permissionKey

	return c.lookup(ctx, key, func() (bool, error) {
		return c.inner.HasPermission(ctx, userID, spaceID, permissionKey)
	})
}

func (c *Cached) IsSpaceAdmin(ctx context.Context, userID, spaceID string) (bool, error) {
	key := "tasklane:admin:" + userID + ":" + spaceID

	return c.lookup(ctx, key, func() (bool, error) {
		return c.inner.IsSpaceAdmin(ctx, userID, spaceID)
	})
}

func (c *Cached) lookup(ctx context.Context, key string, resolve func() (bool, error)) (bool, error) {
	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}

	if !errors.Is(err, redis.Nil) {
		// Cache unavailability is not a permission failure; fall through to
		// the inner oracle.
		c.logger.WarnContext(ctx, "Permission cache read failed", "key", key, "error", err)
	}

	allowed, err := resolve()
	if err != nil {
		return false, err
	}

	value := "0"
	if allowed {
		value = "1"
	}

	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Permission cache write failed", "key", key, "error", err)
	}

	return allowed, nil
}
