package task

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wehubfusion/Sisyphus/pkg/concurrency"
	"go.uber.org/zap"
)

// AsyncManager executes each submitted item on its own goroutine, with a
// concurrency limiter bounding how many attempts run at once. The resolution
// contract is identical to Manager: one outcome per item, one callback at
// most, every item counted.
type AsyncManager struct {
	*engine

	limiter *concurrency.Limiter
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	doneCond    *sync.Cond
	outstanding int
	draining    bool

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// NewAsync builds an AsyncManager. maxWorkers bounds concurrent executions,
// not goroutines; every submission gets a goroutine immediately and waits on
// the limiter for its turn.
func NewAsync(opts ...Option) (*AsyncManager, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxWorkers <= 0 {
		return nil, ErrNoWorkers
	}

	eng, err := newEngine(s)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	m := &AsyncManager{
		engine:  eng,
		limiter: concurrency.NewLimiter(s.maxWorkers),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.doneCond = sync.NewCond(&m.mu)
	m.state.Store(int32(StateRunning))

	m.logger.Info("Async task manager started",
		zap.String("run_id", m.runID),
		zap.Int("max_workers", s.maxWorkers),
		zap.Int("max_attempts", m.policy.MaxAttempts))
	return m, nil
}

// SubmitTask starts a single item and returns its handle.
func (m *AsyncManager) SubmitTask(fn TaskFunc, data any, opts ...SubmitOption) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	ex := m.prepare(fn, data, applySubmitOptions(opts))
	if err := m.admit(ex); err != nil {
		return nil, err
	}
	go m.run(ex)
	return ex.handle, nil
}

// SubmitTasks starts a batch of items, one goroutine each. The batch is
// admitted atomically: either every item is accepted or none is.
func (m *AsyncManager) SubmitTasks(fn TaskFunc, items []any, opts ...SubmitOption) error {
	if fn == nil {
		return ErrNilTask
	}
	if len(items) == 0 {
		return nil
	}
	execs := m.prepareBatch(fn, items, applySubmitOptions(opts))
	if err := m.admit(execs...); err != nil {
		return err
	}
	for _, ex := range execs {
		go m.run(ex)
	}
	return nil
}

// SubmitFromFile reads items from a line-oriented text file and starts them
// as a batch. A missing .txt suffix is appended to the filename.
func (m *AsyncManager) SubmitFromFile(fn TaskFunc, filename string, opts ...SubmitOption) error {
	if fn == nil {
		return ErrNilTask
	}
	items, err := readItems(filename)
	if err != nil {
		return err
	}
	return m.SubmitTasks(fn, items, opts...)
}

func (m *AsyncManager) admit(execs ...*execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return ErrManagerClosed
	}
	m.outstanding += len(execs)
	m.stats.addSubmitted(len(execs))
	for range execs {
		m.metrics.taskQueued()
	}
	return nil
}

// run drives one item from limiter admission to resolution.
func (m *AsyncManager) run(ex *execution) {
	defer m.complete()

	if err := m.limiter.Acquire(m.ctx); err != nil {
		m.discard(ex, err)
		return
	}
	defer m.limiter.Release()

	out := m.execute(m.ctx, ex)
	m.finish(ex, out)
}

func (m *AsyncManager) complete() {
	m.mu.Lock()
	m.outstanding--
	if m.outstanding == 0 {
		m.doneCond.Broadcast()
	}
	m.mu.Unlock()
}

// Wait blocks until every item submitted so far has resolved, or until ctx
// is done, in which case it returns the context error while tasks keep
// running in the background.
func (m *AsyncManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.mu.Lock()
		for m.outstanding > 0 {
			m.doneCond.Wait()
		}
		m.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Statistics reports the counts and failures accumulated so far.
func (m *AsyncManager) Statistics() Statistics {
	return m.statistics()
}

// State reports the current lifecycle state.
func (m *AsyncManager) State() State {
	return State(m.state.Load())
}

// Limiter exposes the concurrency limiter for inspection.
func (m *AsyncManager) Limiter() *concurrency.Limiter {
	return m.limiter
}

// Close stops intake, cancels pending and running items through context
// cancellation, and waits for every outstanding item to resolve. It is
// idempotent; later calls return the first result.
func (m *AsyncManager) Close() error {
	m.closeOnce.Do(func() {
		m.state.Store(int32(StateDraining))

		m.mu.Lock()
		m.draining = true
		pending := m.outstanding
		m.mu.Unlock()

		m.logger.Info("Draining async task manager",
			zap.String("run_id", m.runID),
			zap.Int("outstanding", pending))

		m.cancel()

		m.mu.Lock()
		for m.outstanding > 0 {
			m.doneCond.Wait()
		}
		m.mu.Unlock()

		m.markClosed()
		m.closeErr = m.shutdownTracing()
		m.state.Store(int32(StateClosed))

		stats := m.statistics()
		m.logger.Info("Async task manager closed",
			zap.String("run_id", m.runID),
			zap.Int("submitted", stats.Submitted),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("cancelled", stats.Cancelled),
			zap.Duration("duration", stats.Duration))
	})
	return m.closeErr
}
