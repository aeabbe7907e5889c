package ratelimit

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

type entry struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window counter per key, held in process
// memory. Expired entries are swept lazily at most once per
// cleanupInterval to bound memory.
type MemoryLimiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	lastCleanup time.Time
	now         func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries:     make(map[string]*entry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow checks and consumes one request for key. It never fails: the
// caller turns a denial into a "try again later" response using
// Result.RetryAfter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, maxRequests int, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	e, ok := l.entries[key]
	if !ok || e.resetAt.Before(now) {
		resetAt := now.Add(window)
		l.entries[key] = &entry{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: maxRequests - 1, ResetAt: resetAt}
	}

	if e.count >= maxRequests {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    e.resetAt,
			RetryAfter: e.resetAt.Sub(now),
		}
	}

	e.count++
	return Result{Allowed: true, Remaining: maxRequests - e.count, ResetAt: e.resetAt}
}

func (l *MemoryLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < cleanupInterval {
		return
	}
	l.lastCleanup = now
	for key, e := range l.entries {
		if e.resetAt.Before(now) {
			delete(l.entries, key)
		}
	}
}
