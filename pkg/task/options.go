package task

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wehubfusion/Sisyphus/pkg/proxy"
	"go.uber.org/zap"
)

// settings collects everything the manager constructors accept. Fields are
// resolved once at construction time and read-only afterwards.
type settings struct {
	taskName   string
	maxWorkers int
	shuffle    bool
	policy     RetryPolicy
	proxy      proxy.Config
	logger     *zap.Logger
	baseCtx    context.Context
	tracing    *TracingConfig
	registerer prometheus.Registerer
}

func defaultSettings() settings {
	return settings{
		taskName:   "task",
		maxWorkers: runtime.NumCPU(),
		policy:     RetryPolicy{MaxAttempts: 1},
		logger:     zap.NewNop(),
		baseCtx:    context.Background(),
	}
}

// Option configures a Manager or an AsyncManager at construction.
type Option func(*settings)

// WithTaskName names the run. The name appears in logs, statistics, and
// metric labels. Empty names are ignored.
func WithTaskName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.taskName = name
		}
	}
}

// WithMaxWorkers bounds how many items may execute at once. It defaults to
// runtime.NumCPU(); construction fails on values below 1.
func WithMaxWorkers(n int) Option {
	return func(s *settings) {
		s.maxWorkers = n
	}
}

// WithShuffle randomizes the order in which batch submissions reach the
// workers. Target indices keep the original positions regardless.
func WithShuffle(enabled bool) Option {
	return func(s *settings) {
		s.shuffle = enabled
	}
}

// WithRetries sets the default total number of attempts per item, the first
// one included.
func WithRetries(attempts int) Option {
	return func(s *settings) {
		s.policy.MaxAttempts = attempts
	}
}

// WithRetryDelay sets the default wait between consecutive attempts of the
// same item.
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		s.policy.Delay = d
	}
}

// WithProxy installs the configuration used to resolve a proxy string for
// each Target at submission time.
func WithProxy(cfg proxy.Config) Option {
	return func(s *settings) {
		s.proxy = cfg
	}
}

// WithLogger injects the logger. Each Target receives a child bound with the
// task name and its index. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithContext sets the base context the manager derives its run context
// from. Cancelling it cancels the run the same way Close does.
func WithContext(ctx context.Context) Option {
	return func(s *settings) {
		if ctx != nil {
			s.baseCtx = ctx
		}
	}
}

// WithTracing enables OpenTelemetry spans around each item using the given
// configuration. A tracing setup failure is logged and the run continues
// without spans.
func WithTracing(cfg TracingConfig) Option {
	return func(s *settings) {
		s.tracing = &cfg
	}
}

// WithMetrics registers the engine's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// submitOptions carries per-call overrides. Unset fields inherit the manager
// defaults.
type submitOptions struct {
	attempts  *int
	delay     *time.Duration
	shuffle   *bool
	callbacks Callbacks
}

func applySubmitOptions(opts []SubmitOption) submitOptions {
	var so submitOptions
	for _, opt := range opts {
		opt(&so)
	}
	return so
}

// SubmitOption adjusts a single submission.
type SubmitOption func(*submitOptions)

// Retries overrides the total number of attempts per item for this
// submission.
func Retries(attempts int) SubmitOption {
	return func(so *submitOptions) {
		so.attempts = &attempts
	}
}

// RetryDelay overrides the wait between attempts for this submission.
func RetryDelay(d time.Duration) SubmitOption {
	return func(so *submitOptions) {
		so.delay = &d
	}
}

// Shuffle overrides the manager's shuffle setting for this batch submission.
// Single-item submissions ignore it.
func Shuffle(enabled bool) SubmitOption {
	return func(so *submitOptions) {
		so.shuffle = &enabled
	}
}

// OnSuccess attaches a success handler to this submission.
func OnSuccess(fn func(target *Target, result any)) SubmitOption {
	return func(so *submitOptions) {
		so.callbacks.OnSuccess = fn
	}
}

// OnFailure attaches a failure handler to this submission. It fires once,
// only after the retry policy is exhausted.
func OnFailure(fn func(target *Target, err error)) SubmitOption {
	return func(so *submitOptions) {
		so.callbacks.OnFailure = fn
	}
}

// OnCancel attaches a cancellation handler to this submission.
func OnCancel(fn func(target *Target)) SubmitOption {
	return func(so *submitOptions) {
		so.callbacks.OnCancel = fn
	}
}
