package gateway

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenPaced(t *testing.T) {
	r := newRateLimiter(3, 100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.acquire(ctx); err != nil {
			t.Fatalf("burst acquire %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("burst was throttled: %v", elapsed)
	}

	// The bucket is empty now; the next token needs a refill interval.
	start = time.Now()
	if err := r.acquire(ctx); err != nil {
		t.Fatalf("paced acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("empty bucket served immediately: %v", elapsed)
	}
}

func TestRateLimiter_CancelledContextUnblocks(t *testing.T) {
	r := newRateLimiter(1, 0.1) // One token, then a 10s refill.
	ctx, cancel := context.WithCancel(context.Background())

	r.acquire(ctx)
	cancel()

	done := make(chan error, 1)
	go func() { done <- r.acquire(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("acquire succeeded on a cancelled context")
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not observe cancellation")
	}
}
