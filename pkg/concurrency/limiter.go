// Package concurrency provides semaphore-based admission control with
// observability for task execution.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics tracks limiter behavior over the lifetime of a run.
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Limiter bounds how many executions run at once. Acquire blocks until a
// slot frees up or the context ends; it never rejects on load.
type Limiter struct {
	sem    chan struct{}
	active atomic.Int64

	totalAcquired   atomic.Int64
	totalReleased   atomic.Int64
	peakConcurrent  atomic.Int64
	totalWaitTimeNs atomic.Int64
}

// NewLimiter creates a limiter allowing maxConcurrent simultaneous holders.
// Non-positive values are clamped to 1.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem: make(chan struct{}, maxConcurrent),
	}
}

// Acquire claims a slot, blocking until one is free or ctx is done. On
// context cancellation no slot is held and the context error is returned.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()

	select {
	case l.sem <- struct{}{}:
		l.totalWaitTimeNs.Add(time.Since(start).Nanoseconds())
		l.totalAcquired.Add(1)
		l.updatePeak(l.active.Add(1))
		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire claims a slot without blocking. It reports whether a slot was
// obtained.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.totalAcquired.Add(1)
		l.updatePeak(l.active.Add(1))
		return true
	default:
		return false
	}
}

// Release returns a slot to the limiter. Releasing without a matching
// acquire is a no-op.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
		l.totalReleased.Add(1)
	default:
	}
}

// CurrentActive returns the number of slots currently held.
func (l *Limiter) CurrentActive() int64 {
	return l.active.Load()
}

// Capacity returns the maximum number of simultaneous holders.
func (l *Limiter) Capacity() int {
	return cap(l.sem)
}

// GetMetrics returns a snapshot of the accumulated metrics.
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalAcquired:   l.totalAcquired.Load(),
		TotalReleased:   l.totalReleased.Load(),
		PeakConcurrent:  l.peakConcurrent.Load(),
		TotalWaitTimeNs: l.totalWaitTimeNs.Load(),
	}
}

// GetAverageWaitTime calculates the average time spent waiting for a slot.
func (l *Limiter) GetAverageWaitTime() time.Duration {
	m := l.GetMetrics()
	if m.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(m.TotalWaitTimeNs / m.TotalAcquired)
}

// Reset clears the accumulated metrics. Active slot accounting is untouched.
func (l *Limiter) Reset() {
	l.totalAcquired.Store(0)
	l.totalReleased.Store(0)
	l.peakConcurrent.Store(0)
	l.totalWaitTimeNs.Store(0)
}

func (l *Limiter) updatePeak(current int64) {
	for {
		peak := l.peakConcurrent.Load()
		if current <= peak {
			return
		}
		if l.peakConcurrent.CompareAndSwap(peak, current) {
			return
		}
	}
}
