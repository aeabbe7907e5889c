// Package ratelimit provides per-key fixed-window admission control for
// every outbound operation class (generation, publish, feed sync, tweet
// fetch, bot commands).
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of an admission check. Denial is a normal
// return value, never an error.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits or denies an operation for a key within a window.
//
// The default implementation keeps counters in process memory, which is
// an accepted design constraint for a single instance. Horizontally
// scaled deployments must swap in the Redis implementation so all
// instances share one counter.
type Limiter interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) Result
}
