package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiterWindow(t *testing.T) {
	limiter, err := NewMemoryLimiter(Config{Max: 3, Window: time.Minute})
	if err != nil {
		t.Fatalf("NewMemoryLimiter returned error: %v", err)
	}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	key := Key("token", "203.0.113.7")
	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow(ctx, key)
		if !ok {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}
	if ok, _ := limiter.Allow(ctx, key); ok {
		t.Fatalf("fourth hit within the window must be rejected")
	}

	if ok, _ := limiter.Allow(ctx, Key("token", "198.51.100.1")); !ok {
		t.Fatalf("other client address must have its own bucket")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.Allow(ctx, key); !ok {
		t.Fatalf("hit after the window must be allowed")
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	limiter, err := New(nil, Config{Max: 1, Window: time.Second})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := limiter.(*MemoryLimiter); !ok {
		t.Fatalf("expected memory limiter, got %T", limiter)
	}
}
