package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type counter struct {
	count   int64
	expires time.Time
}

// MemoryStore keeps counters in process. Expired counters are dropped on the
// next hit or by Sweep, which Run calls periodically.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: map[string]counter{}, now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expires) {
		c = counter{expires: now.Add(window)}
	}
	c.count++
	s.counters[key] = c
	return c.count, c.expires.Sub(now), nil
}

// Sweep removes expired counters and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	dropped := 0
	for key, c := range s.counters {
		if !now.Before(c.expires) {
			delete(s.counters, key)
			dropped++
		}
	}
	return dropped
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Run sweeps every interval until ctx is cancelled.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				zap.L().Debug("rate limit counters evicted", zap.Int("count", n))
			}
		}
	}
}
