// Package ratelimit throttles abusive callers on the authentication
// endpoints. Credential stuffing against /users/login is the concern; the
// rest of the API sits behind token auth and is left unthrottled.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter answers whether a keyed caller may proceed and counts the attempt.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// slidingWindow holds the attempt timestamps for one key.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func (sw *slidingWindow) tryConsume(limit int, now time.Time) (allowed bool, remaining int, resetAt time.Time) {
	sw.cleanupExpired(now)

	if len(sw.timestamps) >= limit {
		return false, 0, sw.timestamps[0].Add(sw.window)
	}

	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(sw.window)
}

func (sw *slidingWindow) cleanupExpired(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// InMemoryLimiter implements Limiter with a per-key sliding window. Used
// when Redis is not configured; state is per-process.
type InMemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	window  time.Duration
	clock   func() time.Time
}

func NewInMemoryLimiter(limit int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		windows: make(map[string]*slidingWindow),
		limit:   limit,
		window:  window,
		clock:   time.Now,
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sw, ok := l.windows[key]
	if !ok {
		sw = &slidingWindow{window: l.window}
		l.windows[key] = sw
	}

	allowed, remaining, resetAt := sw.tryConsume(l.limit, l.clock())
	return &Result{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}, nil
}
