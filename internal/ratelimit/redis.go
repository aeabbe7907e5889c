package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLimiter shares one fixed-window counter per key across
// instances. INCR creates the key atomically; the first increment in a
// window attaches the expiry that defines the window boundary.
type RedisLimiter struct {
	client *redis.Client
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a limiter backed by the given Redis address.
func NewRedisLimiter(addr string) *RedisLimiter {
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Allow checks and consumes one request for key. Redis failures fail
// open so an unreachable counter does not block the whole pipeline.
func (l *RedisLimiter) Allow(ctx context.Context, key string, maxRequests int, window time.Duration) Result {
	now := time.Now()

	count, err := l.client.Incr(ctx, "ratelimit:"+key).Result()
	if err != nil {
		logrus.Warnf("Rate limit check failed for %s, allowing request: %v", key, err)
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetAt: now.Add(window)}
	}

	if count == 1 {
		if err := l.client.Expire(ctx, "ratelimit:"+key, window).Err(); err != nil {
			logrus.Warnf("Failed to set rate limit expiry for %s: %v", key, err)
		}
	}

	ttl, err := l.client.TTL(ctx, "ratelimit:"+key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	resetAt := now.Add(ttl)

	if int(count) > maxRequests {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: ttl}
	}

	return Result{Allowed: true, Remaining: maxRequests - int(count), ResetAt: resetAt}
}
