package task

import "go.uber.org/zap"

// Callbacks carries the optional per-outcome handlers attached to a
// submission. Any nil handler is skipped; none of them is required.
type Callbacks struct {
	// OnSuccess runs after an item's function returns without error.
	OnSuccess func(target *Target, result any)

	// OnFailure runs after an item's final attempt returns an error. It
	// never fires for an intermediate attempt.
	OnFailure func(target *Target, err error)

	// OnCancel runs for items that resolve as cancelled.
	OnCancel func(target *Target)
}

// dispatch fires the single callback matching the outcome. It runs after the
// item's final attempt resolves and before the outcome is recorded in
// statistics. A panic inside a user callback is recovered and logged so one
// item's handler cannot disturb the rest of the run.
func dispatch(target *Target, out Outcome, cb Callbacks) {
	defer func() {
		if r := recover(); r != nil {
			target.Logger().Error("Callback panicked",
				zap.String("outcome", string(out.Kind)),
				zap.Any("panic", r))
		}
	}()

	switch out.Kind {
	case KindSuccess:
		if cb.OnSuccess != nil {
			cb.OnSuccess(target, out.Result)
		}
	case KindFailed:
		if cb.OnFailure != nil {
			cb.OnFailure(target, out.Err)
		}
	case KindCancelled:
		if cb.OnCancel != nil {
			cb.OnCancel(target)
		}
	}
}
