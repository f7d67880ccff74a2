package ratelimit

import (
	"context"
	"fmt"
	"time"

	redisclient "custodia/internal/platform/redis"
)

// RedisLimiter implements Limiter with a fixed window counter in Redis so
// the limit holds across replicas. INCR and EXPIRE keep it to one round trip
// per attempt via pipelining.
type RedisLimiter struct {
	client *redisclient.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redisclient.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	redisKey := l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(incr.Val())
	result := &Result{
		Allowed:   count <= l.limit,
		ResetAt:   time.Now().Add(l.window),
		Remaining: l.limit - count,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}
