package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Scope namespaces rate limit buckets.
type Scope string

const (
	ScopeActor  Scope = "actor"
	ScopePublic Scope = "public"
)

// Result is the outcome of one AllowRequest call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RedisRateLimiter implements rate limiting using Redis sliding window algorithm
type RedisRateLimiter struct {
	client              redis.Cmdable
	rateLimitRejections metric.Int64Counter
	now                 func() time.Time
}

// NewRedisRateLimiter creates a new Redis-based rate limiter. rejections may be nil.
func NewRedisRateLimiter(client redis.Cmdable, rejections metric.Int64Counter) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:              client,
		rateLimitRejections: rejections,
		now:                 time.Now,
	}
}

func bucketKey(scope Scope, id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, id)
}

// AllowRequest records one request for (scope, id) and reports whether it
// fits within limit requests per window.
func (rl *RedisRateLimiter) AllowRequest(ctx context.Context, scope Scope, id string, limit int, window time.Duration) (Result, error) {
	now := rl.now()
	windowStart := now.Add(-window)
	key := bucketKey(scope, id)

	// MULTI/EXEC keeps trim, add and count consistent under concurrent callers
	pipe := rl.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d", now.UnixNano()),
	})
	countCmd := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count, err := countCmd.Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get count: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}

	if !res.Allowed && rl.rateLimitRejections != nil {
		rl.rateLimitRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", string(scope))))
	}

	return res, nil
}
