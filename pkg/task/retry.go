package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TaskFunc is the unit of work the engine runs once per item. The context is
// cancelled when the manager closes or its base context ends; functions that
// block should honor it.
type TaskFunc func(ctx context.Context, target *Target) (any, error)

// RetryPolicy governs how many times a failing item is attempted and how
// long the engine waits between consecutive attempts of the same item.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations allowed per item,
	// the first one included. Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the wait between consecutive attempts. A zero delay retries
	// immediately; negative values are treated as zero.
	Delay time.Duration
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// runAttempts drives one item through its attempt loop and returns the
// terminal outcome together with the number of attempts used. Attempts on a
// single item are strictly sequential; only the last error is kept.
func runAttempts(ctx context.Context, fn TaskFunc, target *Target, policy RetryPolicy) (Outcome, int) {
	policy = policy.normalize()
	log := target.Logger()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 && policy.Delay > 0 {
			log.Debug("Waiting before retry",
				zap.Duration("retry_delay", policy.Delay),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", policy.MaxAttempts))
			select {
			case <-ctx.Done():
				return cancelled(ctx.Err()), attempt - 1
			case <-time.After(policy.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return cancelled(err), attempt - 1
		}

		result, err := invoke(ctx, fn, target)
		if err == nil {
			return success(result), attempt
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			// The run was cancelled while the attempt was in flight. A
			// function that aborted on the cancellation signal, or any
			// failure with retries still pending, resolves as cancelled;
			// a terminal attempt that failed on its own reports the real
			// failure below.
			if errors.Is(err, ctxErr) || attempt < policy.MaxAttempts {
				return cancelled(ctxErr), attempt
			}
		}
		lastErr = err
		log.Warn("Task attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err))
	}
	return failed(lastErr), policy.MaxAttempts
}

// invoke calls fn and converts a panic into an ordinary attempt error so a
// misbehaving task cannot take down its worker.
func invoke(ctx context.Context, fn TaskFunc, target *Target) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, target)
}
