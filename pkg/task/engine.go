package task

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wehubfusion/Sisyphus/internal/tracing"
	"github.com/wehubfusion/Sisyphus/pkg/proxy"
	"github.com/wehubfusion/Sisyphus/pkg/textfile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// execution binds one Target to everything needed to run it.
type execution struct {
	target    *Target
	fn        TaskFunc
	policy    RetryPolicy
	callbacks Callbacks
	handle    *Handle
}

// engine holds the state shared by both manager flavors: run identity,
// logging, proxy allocation, outcome recording, and the per-item execution
// path. The managers differ only in how they schedule executions onto it.
type engine struct {
	name      string
	runID     string
	logger    *zap.Logger
	policy    RetryPolicy
	shuffle   bool
	allocator *proxy.Allocator
	stats     *collector
	metrics   *runMetrics
	tracer    trace.Tracer

	tracingShutdown func(context.Context) error

	startedAt time.Time
	closedAt  atomic.Int64
	nextIndex atomic.Int64
}

func newEngine(s settings) (*engine, error) {
	e := &engine{
		name:      s.taskName,
		runID:     uuid.NewString(),
		logger:    s.logger.With(zap.String("task", s.taskName)),
		policy:    s.policy.normalize(),
		shuffle:   s.shuffle,
		allocator: proxy.NewAllocator(s.proxy),
		stats:     &collector{},
		tracer:    otel.Tracer("sisyphus/task"),
	}

	if s.registerer != nil {
		m, err := newRunMetrics(s.registerer, s.taskName)
		if err != nil {
			return nil, err
		}
		e.metrics = m
	}

	// Set up tracing if configuration is provided.
	if s.tracing != nil {
		shutdown, err := tracing.Setup(context.Background(), s.tracing.toInternal(), e.logger)
		if err != nil {
			e.logger.Warn("Failed to set up tracing, continuing without it", zap.Error(err))
		} else {
			e.tracingShutdown = shutdown
			e.logger.Info("Tracing setup complete",
				zap.String("service", s.tracing.ServiceName),
				zap.String("endpoint", s.tracing.OTLPEndpoint))
		}
	}

	e.startedAt = time.Now()
	return e, nil
}

// newTarget wraps one submitted item. Indices follow global submission
// order across all submit calls on the manager.
func (e *engine) newTarget(data any) *Target {
	index := int(e.nextIndex.Add(1) - 1)
	preview := makePreview(data)
	return &Target{
		Index:   index,
		Data:    data,
		preview: preview,
		proxy:   e.allocator.Resolve(index, preview),
		logger:  e.logger.With(zap.Int("index", index)),
	}
}

// prepare builds the execution record for a single item.
func (e *engine) prepare(fn TaskFunc, data any, so submitOptions) *execution {
	target := e.newTarget(data)
	return &execution{
		target:    target,
		fn:        fn,
		policy:    e.resolvePolicy(so),
		callbacks: so.callbacks,
		handle:    newHandle(target),
	}
}

// prepareBatch wraps items in their original order, then permutes the
// execution order when shuffling is on. Indices always reflect the original
// positions.
func (e *engine) prepareBatch(fn TaskFunc, items []any, so submitOptions) []*execution {
	execs := make([]*execution, len(items))
	for i, item := range items {
		execs[i] = e.prepare(fn, item, so)
	}

	shuffle := e.shuffle
	if so.shuffle != nil {
		shuffle = *so.shuffle
	}
	if shuffle {
		rand.Shuffle(len(execs), func(i, j int) {
			execs[i], execs[j] = execs[j], execs[i]
		})
	}
	return execs
}

// resolvePolicy applies per-call overrides on top of the manager default.
func (e *engine) resolvePolicy(so submitOptions) RetryPolicy {
	p := e.policy
	if so.attempts != nil {
		p.MaxAttempts = *so.attempts
	}
	if so.delay != nil {
		p.Delay = *so.delay
	}
	return p.normalize()
}

// execute runs one prepared item to its terminal outcome.
func (e *engine) execute(ctx context.Context, ex *execution) Outcome {
	target := ex.target
	log := target.Logger()

	ctx, span := e.tracer.Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.String("task.name", e.name),
			attribute.String("task.run_id", e.runID),
			attribute.Int("task.index", target.Index),
		))
	defer span.End()

	e.metrics.taskStarted()
	log.Debug("Task started", zap.String("item", target.Preview()))

	start := time.Now()
	out, attempts := runAttempts(ctx, ex.fn, target, ex.policy)
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int("task.attempts", attempts),
		attribute.String("task.outcome", string(out.Kind)),
		attribute.Int64("task.duration_ms", elapsed.Milliseconds()),
	)

	switch out.Kind {
	case KindSuccess:
		span.SetStatus(codes.Ok, "task completed")
		log.Info("Task completed",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed))
	case KindFailed:
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		log.Error("Task failed",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(out.Err))
	case KindCancelled:
		span.SetStatus(codes.Error, "task cancelled")
		log.Info("Task cancelled",
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed))
	}

	e.metrics.taskExecuted(out, attempts, elapsed)
	return out
}

// finish resolves one item: it completes the handle, fires the matching
// callback, then records the outcome. That order is fixed; statistics never
// count an item whose callback has not yet run.
func (e *engine) finish(ex *execution, out Outcome) {
	ex.handle.complete(out)
	dispatch(ex.target, out, ex.callbacks)
	e.stats.record(ex.target, out)
}

// discard resolves an item that never started as cancelled.
func (e *engine) discard(ex *execution, cause error) {
	ex.target.Logger().Debug("Task cancelled before start", zap.Error(cause))
	e.metrics.taskDiscarded()
	e.finish(ex, cancelled(cause))
}

// statistics assembles the report with the run identity and timing attached.
func (e *engine) statistics() Statistics {
	stats := e.stats.snapshot()
	stats.TaskName = e.name
	stats.RunID = e.runID
	stats.StartedAt = e.startedAt
	if ns := e.closedAt.Load(); ns != 0 {
		stats.Duration = time.Unix(0, ns).Sub(e.startedAt)
	} else {
		stats.Duration = time.Since(e.startedAt)
	}
	return stats
}

// markClosed freezes the run duration.
func (e *engine) markClosed() {
	e.closedAt.Store(time.Now().UnixNano())
}

// shutdownTracing flushes the exporter when tracing was configured.
func (e *engine) shutdownTracing() error {
	if e.tracingShutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.tracingShutdown(ctx); err != nil {
		e.logger.Error("Error shutting down tracing", zap.Error(err))
		return err
	}
	return nil
}

// readItems loads the ordered items of a line-oriented text file.
func readItems(filename string) ([]any, error) {
	lines, err := textfile.ReadItems(filename, textfile.DefaultSeparator)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(lines))
	for i, line := range lines {
		items[i] = line
	}
	return items, nil
}
