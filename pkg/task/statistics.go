package task

import (
	"sync"
	"time"
)

// Failure pairs a failed item with the error from its final attempt.
type Failure struct {
	Target *Target
	Err    error
}

// Statistics is the aggregate report of a run. The counters cover every item
// that reached a terminal outcome; Failures lists failed items in completion
// order and always holds exactly Failed entries.
type Statistics struct {
	TaskName  string
	RunID     string
	Submitted int
	Succeeded int
	Failed    int
	Cancelled int
	Failures  []Failure
	StartedAt time.Time
	Duration  time.Duration
}

// collector serializes outcome recording across workers. It is the only
// engine structure mutated from multiple goroutines.
type collector struct {
	mu        sync.Mutex
	submitted int
	succeeded int
	failed    int
	cancelled int
	failures  []Failure
}

func (c *collector) addSubmitted(n int) {
	c.mu.Lock()
	c.submitted += n
	c.mu.Unlock()
}

// record tallies one terminal outcome. The failure pair is appended under
// the same lock as its counter so the two can never disagree.
func (c *collector) record(target *Target, out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch out.Kind {
	case KindSuccess:
		c.succeeded++
	case KindFailed:
		c.failed++
		c.failures = append(c.failures, Failure{Target: target, Err: out.Err})
	case KindCancelled:
		c.cancelled++
	}
}

// snapshot returns a consistent copy of the counters. Mid-run it reports
// whatever has been recorded so far.
func (c *collector) snapshot() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := make([]Failure, len(c.failures))
	copy(failures, c.failures)

	return Statistics{
		Submitted: c.submitted,
		Succeeded: c.succeeded,
		Failed:    c.failed,
		Cancelled: c.cancelled,
		Failures:  failures,
	}
}
