package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func testTarget(data any) *Target {
	return &Target{Index: 0, Data: data, preview: makePreview(data)}
}

func TestRunAttemptsSucceedsFirstTry(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		return "done", nil
	}

	out, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 3})

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Kind, out.Err)
	}
	if out.Result != "done" {
		t.Fatalf("expected result %q, got %v", "done", out.Result)
	}
	if attempts != 1 || calls != 1 {
		t.Fatalf("expected a single attempt, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestRunAttemptsExhaustsAndKeepsLastError(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		return nil, fmt.Errorf("attempt %d failed", calls)
	}

	out, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 3})

	if out.Kind != KindFailed {
		t.Fatalf("expected failure, got %s", out.Kind)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts, got attempts=%d calls=%d", attempts, calls)
	}
	if out.Err == nil || out.Err.Error() != "attempt 3 failed" {
		t.Fatalf("expected the last error to win, got %v", out.Err)
	}
}

func TestRunAttemptsStopsRetryingAfterSuccess(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("not yet")
		}
		return calls, nil
	}

	out, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 5})

	if out.Kind != KindSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Kind, out.Err)
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("expected success on the third attempt, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestRunAttemptsWaitsBetweenAttempts(t *testing.T) {
	delay := 80 * time.Millisecond
	var times []time.Time
	fn := func(ctx context.Context, target *Target) (any, error) {
		times = append(times, time.Now())
		return nil, errors.New("boom")
	}

	_, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 2, Delay: delay})

	if attempts != 2 || len(times) != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if gap := times[1].Sub(times[0]); gap < delay {
		t.Fatalf("expected at least %s between attempts, got %s", delay, gap)
	}
}

func TestRunAttemptsZeroDelayRetriesImmediately(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		return nil, errors.New("boom")
	}

	start := time.Now()
	_, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 10})

	if attempts != 10 || calls != 10 {
		t.Fatalf("expected 10 attempts, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero-delay retries took too long: %s", elapsed)
	}
}

func TestRunAttemptsCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		return nil, errors.New("boom")
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	out, attempts := runAttempts(ctx, fn, testTarget("x"), RetryPolicy{MaxAttempts: 3, Delay: time.Minute})

	if out.Kind != KindCancelled {
		t.Fatalf("expected cancelled, got %s", out.Kind)
	}
	if calls != 1 {
		t.Fatalf("expected no invocation after cancellation, got %d calls", calls)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation did not interrupt the delay, took %s", elapsed)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled cause, got %v", out.Err)
	}
}

func TestRunAttemptsPreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fn := func(ctx context.Context, target *Target) (any, error) {
		t.Fatal("task must not run with a cancelled context")
		return nil, nil
	}

	out, attempts := runAttempts(ctx, fn, testTarget("x"), RetryPolicy{MaxAttempts: 3})

	if out.Kind != KindCancelled {
		t.Fatalf("expected cancelled, got %s", out.Kind)
	}
	if attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", attempts)
	}
}

func TestRunAttemptsAbortedAttemptResolvesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context, target *Target) (any, error) {
		cancel()
		return nil, ctx.Err()
	}

	out, attempts := runAttempts(ctx, fn, testTarget("x"), RetryPolicy{MaxAttempts: 1})

	if out.Kind != KindCancelled {
		t.Fatalf("expected cancelled, got %s (%v)", out.Kind, out.Err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestRunAttemptsTerminalFailureBeatsLateCancellation(t *testing.T) {
	// The final attempt fails for its own reasons while the run context
	// happens to be cancelled; the real failure must be reported.
	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context, target *Target) (any, error) {
		cancel()
		return nil, errors.New("credentials rejected")
	}

	out, attempts := runAttempts(ctx, fn, testTarget("x"), RetryPolicy{MaxAttempts: 1})

	if out.Kind != KindFailed {
		t.Fatalf("expected failed, got %s (%v)", out.Kind, out.Err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if out.Err == nil || out.Err.Error() != "credentials rejected" {
		t.Fatalf("expected the attempt error, got %v", out.Err)
	}
}

func TestRunAttemptsNonTerminalFailureUnderCancellation(t *testing.T) {
	// A failed attempt with retries still pending resolves cancelled once
	// the context is done, instead of burning the remaining attempts.
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fn := func(ctx context.Context, target *Target) (any, error) {
		calls++
		cancel()
		return nil, errors.New("boom")
	}

	out, _ := runAttempts(ctx, fn, testTarget("x"), RetryPolicy{MaxAttempts: 5})

	if out.Kind != KindCancelled {
		t.Fatalf("expected cancelled, got %s (%v)", out.Kind, out.Err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestRunAttemptsRecoversPanics(t *testing.T) {
	fn := func(ctx context.Context, target *Target) (any, error) {
		panic("worker down")
	}

	out, attempts := runAttempts(context.Background(), fn, testTarget("x"), RetryPolicy{MaxAttempts: 2})

	if out.Kind != KindFailed {
		t.Fatalf("expected failed, got %s", out.Kind)
	}
	if attempts != 2 {
		t.Fatalf("expected the panicking task to be retried, got %d attempts", attempts)
	}
	if out.Err == nil || !strings.Contains(out.Err.Error(), "task panicked: worker down") {
		t.Fatalf("expected panic error, got %v", out.Err)
	}
}

func TestRetryPolicyNormalize(t *testing.T) {
	p := RetryPolicy{MaxAttempts: -2, Delay: -time.Second}.normalize()
	if p.MaxAttempts != 1 {
		t.Fatalf("expected MaxAttempts 1, got %d", p.MaxAttempts)
	}
	if p.Delay != 0 {
		t.Fatalf("expected zero delay, got %s", p.Delay)
	}
}
