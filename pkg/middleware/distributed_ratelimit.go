package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements a fixed-window limiter in Redis so
// limits are shared across instances
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "softwarehub:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts one request against key's current window. The window starts
// with the first request and lasts WindowDuration.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := rl.key(key)
	limit := rl.config.RequestsPerWindow + rl.config.BurstSize

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("redis error: %w", err)
	}

	// a key without expiry is a fresh window
	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return Decision{}, fmt.Errorf("redis error: %w", err)
		}
		remainingTTL = rl.config.WindowDuration
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= limit,
		Limit:     rl.config.RequestsPerWindow,
		Remaining: remaining,
		ResetAt:   time.Now().Add(remainingTTL),
	}, nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}
