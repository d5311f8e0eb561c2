// Package ratelimit counts requests in fixed windows. Counters live in an
// injected Store so several API processes can share one Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store increments a counter that expires window after its first hit and
// reports the time left until it resets.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.store.Incr(ctx, "ratelimit:"+key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	d := Decision{Limit: l.limit, Allowed: count <= int64(l.limit)}
	if d.Allowed {
		d.Remaining = l.limit - int(count)
	} else {
		d.RetryAfter = ttl
	}
	return d, nil
}
