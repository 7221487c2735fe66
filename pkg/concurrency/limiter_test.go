package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLimiterAcquireReleaseTracksMetrics(t *testing.T) {
	limiter := NewLimiter(2)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if limiter.CurrentActive() != 1 {
		t.Fatalf("expected 1 active holder, got %d", limiter.CurrentActive())
	}
	limiter.Release()
	if limiter.CurrentActive() != 0 {
		t.Fatalf("expected 0 active holders, got %d", limiter.CurrentActive())
	}

	metrics := limiter.GetMetrics()
	if metrics.TotalAcquired != 1 {
		t.Fatalf("expected TotalAcquired 1, got %d", metrics.TotalAcquired)
	}
	if metrics.TotalReleased != 1 {
		t.Fatalf("expected TotalReleased 1, got %d", metrics.TotalReleased)
	}
	if metrics.PeakConcurrent != 1 {
		t.Fatalf("expected PeakConcurrent 1, got %d", metrics.PeakConcurrent)
	}
}

func TestLimiterAcquireHonorsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := limiter.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if limiter.CurrentActive() != 1 {
		t.Fatalf("cancelled Acquire must not hold a slot, active %d", limiter.CurrentActive())
	}
	if got := limiter.GetMetrics().TotalAcquired; got != 1 {
		t.Fatalf("cancelled Acquire must not count, got %d", got)
	}
}

func TestLimiterTryAcquire(t *testing.T) {
	limiter := NewLimiter(1)

	if !limiter.TryAcquire() {
		t.Fatal("expected the first TryAcquire to succeed")
	}
	if limiter.TryAcquire() {
		t.Fatal("expected TryAcquire to fail while the slot is held")
	}
	limiter.Release()
	if !limiter.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed after Release")
	}
	limiter.Release()
}

func TestLimiterTracksPeakConcurrency(t *testing.T) {
	const capacity = 4
	limiter := NewLimiter(capacity)

	var wg sync.WaitGroup
	for i := 0; i < capacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			time.Sleep(20 * time.Millisecond)
			limiter.Release()
		}()
	}
	wg.Wait()

	metrics := limiter.GetMetrics()
	if metrics.TotalAcquired != capacity || metrics.TotalReleased != capacity {
		t.Fatalf("unexpected totals: %+v", metrics)
	}
	if metrics.PeakConcurrent > capacity {
		t.Fatalf("peak %d exceeds capacity %d", metrics.PeakConcurrent, capacity)
	}
	if metrics.PeakConcurrent < 1 {
		t.Fatalf("expected a recorded peak, got %d", metrics.PeakConcurrent)
	}
}

func TestLimiterBlocksAtCapacity(t *testing.T) {
	limiter := NewLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Errorf("Acquire failed: %v", err)
			return
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire must block while the slot is held")
	case <-time.After(30 * time.Millisecond):
	}

	limiter.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Acquire never proceeded after Release")
	}
	limiter.Release()

	if wait := limiter.GetAverageWaitTime(); wait <= 0 {
		t.Fatalf("expected a positive average wait, got %s", wait)
	}
}

func TestLimiterClampsNonPositiveCapacity(t *testing.T) {
	for _, n := range []int{0, -5} {
		if got := NewLimiter(n).Capacity(); got != 1 {
			t.Fatalf("NewLimiter(%d).Capacity() = %d, want 1", n, got)
		}
	}
	if got := NewLimiter(8).Capacity(); got != 8 {
		t.Fatalf("Capacity() = %d, want 8", got)
	}
}

func TestLimiterReleaseWithoutAcquireIsANoop(t *testing.T) {
	limiter := NewLimiter(1)
	limiter.Release()

	if limiter.CurrentActive() != 0 {
		t.Fatalf("expected 0 active, got %d", limiter.CurrentActive())
	}
	if got := limiter.GetMetrics().TotalReleased; got != 0 {
		t.Fatalf("unmatched Release must not count, got %d", got)
	}
}

func TestLimiterResetClearsMetricsOnly(t *testing.T) {
	limiter := NewLimiter(2)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	limiter.Reset()

	metrics := limiter.GetMetrics()
	if metrics != (Metrics{}) {
		t.Fatalf("expected zero metrics after Reset, got %+v", metrics)
	}
	if limiter.CurrentActive() != 1 {
		t.Fatalf("Reset must not touch slot accounting, active %d", limiter.CurrentActive())
	}
	limiter.Release()
}

func TestLimiterAverageWaitWithoutAcquires(t *testing.T) {
	if got := NewLimiter(1).GetAverageWaitTime(); got != 0 {
		t.Fatalf("expected 0 average wait, got %s", got)
	}
}
