package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// StatsKeyPrefix prefixes the per-day Redis key of cached stats
const StatsKeyPrefix = "softwarehub:audit:stats:"

// StatsCache stores the Stats snapshot for the current local day
type StatsCache interface {
	Get(ctx context.Context) (*Stats, bool, error)
	Set(ctx context.Context, stats *Stats) error
	Invalidate(ctx context.Context) error
}

// RedisStatsCache keeps Stats in Redis under a key per local date so
// todayLogs never survives midnight
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

// NewRedisStatsCache creates a cache; loc decides which date "today" is
func NewRedisStatsCache(client *redis.Client, ttl time.Duration, loc *time.Location) *RedisStatsCache {
	if loc == nil {
		loc = time.Local
	}
	return &RedisStatsCache{client: client, ttl: ttl, loc: loc, now: time.Now}
}

// Key returns the cache key for the current local date
func (c *RedisStatsCache) Key() string {
	return StatsKeyPrefix + c.now().In(c.loc).Format("2006-01-02")
}

// Get returns the cached snapshot, ok=false on a miss
func (c *RedisStatsCache) Get(ctx context.Context) (*Stats, bool, error) {
	raw, err := c.client.Get(ctx, c.Key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read stats cache: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, true, nil
}

// Set stores stats with the configured TTL. Without a positive TTL nothing
// is stored, since Redis would keep the key forever.
func (c *RedisStatsCache) Set(ctx context.Context, stats *Stats) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats cache: %w", err)
	}
	return nil
}

// Invalidate drops today's snapshot
func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.Key()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}
	return nil
}
