package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter backed by a shared Redis counter,
// for deployments running more than one process behind a load balancer.
// Each window is one key (INCR) whose TTL is set on first use, so budget
// resets when the key expires.
type RedisLimiter struct {
	cfg    Config
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		cfg:    cfg.withDefaults(),
		client: client,
		prefix: "admission:",
	}
}

// Admit atomically consumes one unit of the client's shared budget.
func (l *RedisLimiter) Admit(ctx context.Context, clientKey string) (Decision, error) {
	key := l.prefix + clientKey

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis admit: %w", err)
	}

	used := int(count.Val())
	if used > l.cfg.MaxRequests {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.cfg.Window
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.cfg.MaxRequests - used}, nil
}
