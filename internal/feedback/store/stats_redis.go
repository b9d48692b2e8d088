package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"avalia/internal/aggregate"
	platformredis "avalia/internal/platform/redis"
)

// statsKey holds the latest published statistics snapshot.
const statsKey = "avalia:stats:latest"

// RedisStatsCache mirrors the latest statistics snapshot into Redis so
// external dashboards can poll it without hitting the service. The cache is
// write-only from this service's point of view; reads always come from the
// aggregation engine.
type RedisStatsCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a cache writing snapshots with the given TTL.
func NewRedisStatsCache(client *platformredis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{client: client, ttl: ttl}
}

// Set stores the snapshot JSON under the well-known key.
func (c *RedisStatsCache) Set(ctx context.Context, stats aggregate.Statistics) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	if err := c.client.Set(ctx, statsKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache statistics: %w", err)
	}
	return nil
}
