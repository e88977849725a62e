package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalog-gateway/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "workspace:query:"
	notFoundMarker = "-"

	DefaultNotFoundTTL = 30 * time.Second
)

// RedisCache keeps lookup outcomes in Redis. Found workspaces live for ttl;
// "not found" entries live for the shorter notFoundTTL so a new subscription
// is picked up quickly.
type RedisCache struct {
	client      redis.Cmdable
	ttl         time.Duration
	notFoundTTL time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return (&RedisCache{client: client, ttl: ttl}).WithNotFoundTTL(DefaultNotFoundTTL)
}

// WithNotFoundTTL sets the lifetime of "not found" entries, capped at the
// cache TTL. A non-positive d keeps the current value.
func (c *RedisCache) WithNotFoundTTL(d time.Duration) *RedisCache {
	if d <= 0 {
		return c
	}
	c.notFoundTTL = min(d, c.ttl)
	return c
}

func cacheKey(queryID string) string {
	return cacheKeyPrefix + queryID
}

func (c *RedisCache) Get(ctx context.Context, queryID string) (*models.Workspace, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(queryID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	if val == notFoundMarker {
		return nil, true, nil
	}

	var ws models.Workspace
	if err := json.Unmarshal([]byte(val), &ws); err != nil {
		return nil, false, fmt.Errorf("decode cached workspace: %w", err)
	}
	return &ws, true, nil
}

func (c *RedisCache) Set(ctx context.Context, queryID string, ws *models.Workspace) error {
	val, ttl := notFoundMarker, c.notFoundTTL
	if ws != nil {
		data, err := json.Marshal(ws)
		if err != nil {
			return fmt.Errorf("encode workspace: %w", err)
		}
		val, ttl = string(data), c.ttl
	}
	if err := c.client.Set(ctx, cacheKey(queryID), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
