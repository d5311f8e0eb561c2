package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, s
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestRedisLimiterWindow(t *testing.T) {
	store, s := setupTestRedis(t)
	limiter := NewLimiter(store, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1:/boards")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "10.0.0.1:/boards")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth request should be rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("unexpected retry after %v", d.RetryAfter)
	}

	other, err := limiter.Allow(ctx, "10.0.0.1:/members")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !other.Allowed {
		t.Error("a different path has its own window")
	}

	s.FastForward(61 * time.Second)
	d, err = limiter.Allow(ctx, "10.0.0.1:/boards")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !d.Allowed {
		t.Error("window should have reset")
	}
}

func TestRedisStoreRepairsMissingTTL(t *testing.T) {
	store, s := setupTestRedis(t)
	if err := s.Set("ratelimit:stuck", "5"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, ttl, err := store.Incr(context.Background(), "ratelimit:stuck", time.Minute)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if count != 6 {
		t.Errorf("expected count 6, got %d", count)
	}
	if ttl != time.Minute {
		t.Errorf("expected ttl reset to a minute, got %v", ttl)
	}
	if s.TTL("ratelimit:stuck") <= 0 {
		t.Error("expected key to carry a ttl")
	}
}

func TestMemoryStoreWindowAndSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	limiter := NewLimiter(store, 2, time.Minute)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		d, err := limiter.Allow(ctx, "ip:/boards")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if d.Allowed != want {
			t.Fatalf("request %d: expected allowed=%v", i+1, want)
		}
	}
	if _, err := limiter.Allow(ctx, "ip:/csrf"); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}

	now = now.Add(30 * time.Second)
	d, _ := limiter.Allow(ctx, "ip:/boards")
	if d.Allowed || d.RetryAfter != 30*time.Second {
		t.Errorf("expected rejection with 30s retry, got %+v", d)
	}

	now = now.Add(31 * time.Second)
	if dropped := store.Sweep(); dropped != 2 {
		t.Errorf("expected 2 evictions, got %d", dropped)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}

	d, _ = limiter.Allow(ctx, "ip:/boards")
	if !d.Allowed || d.Remaining != 1 {
		t.Errorf("expected fresh window, got %+v", d)
	}
}

func TestMemoryStoreRunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
