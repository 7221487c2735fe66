// Package task runs batches of homogeneous work items through a retrying,
// proxy-aware execution engine. Two managers share the same engine and
// resolution contract: Manager schedules items onto a fixed pool of resident
// workers, while AsyncManager starts a goroutine per item behind a
// concurrency limiter. Every submitted item resolves to exactly one Outcome,
// fires at most one callback, and is counted exactly once in Statistics.
package task

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State describes where a manager is in its lifecycle.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Manager executes submitted items on a fixed pool of worker goroutines.
// Submissions are accepted until Close; the queue between submitters and
// workers is unbounded, so submits never block on backpressure.
type Manager struct {
	*engine

	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc

	mu          sync.Mutex
	queueCond   *sync.Cond
	doneCond    *sync.Cond
	queue       []*execution
	outstanding int
	draining    bool

	workers   sync.WaitGroup
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// New builds a Manager and starts its workers. The manager accepts
// submissions immediately and keeps running until Close.
func New(opts ...Option) (*Manager, error) {
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
	m := &Manager{
		engine:     eng,
		maxWorkers: s.maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	m.queueCond = sync.NewCond(&m.mu)
	m.doneCond = sync.NewCond(&m.mu)
	m.state.Store(int32(StateRunning))

	m.workers.Add(s.maxWorkers)
	for i := 0; i < s.maxWorkers; i++ {
		go m.worker(i)
	}

	m.logger.Info("Task manager started",
		zap.String("run_id", m.runID),
		zap.Int("max_workers", s.maxWorkers),
		zap.Int("max_attempts", m.policy.MaxAttempts))
	return m, nil
}

// SubmitTask queues a single item and returns its handle. The returned
// handle resolves once the item reaches a terminal outcome; submission
// itself never fails for item-level reasons, only when fn is nil or the
// manager is already closing.
func (m *Manager) SubmitTask(fn TaskFunc, data any, opts ...SubmitOption) (*Handle, error) {
	if fn == nil {
		return nil, ErrNilTask
	}
	ex := m.prepare(fn, data, applySubmitOptions(opts))
	if err := m.enqueue(ex); err != nil {
		return nil, err
	}
	return ex.handle, nil
}

// SubmitTasks queues a batch of items. Indices follow the order of items;
// when shuffling is on only the execution order is permuted. The batch is
// queued atomically: either every item is accepted or none is.
func (m *Manager) SubmitTasks(fn TaskFunc, items []any, opts ...SubmitOption) error {
	if fn == nil {
		return ErrNilTask
	}
	if len(items) == 0 {
		return nil
	}
	execs := m.prepareBatch(fn, items, applySubmitOptions(opts))
	return m.enqueue(execs...)
}

// SubmitFromFile reads items from a line-oriented text file and queues
// them as a batch. A missing .txt suffix is appended to the filename.
func (m *Manager) SubmitFromFile(fn TaskFunc, filename string, opts ...SubmitOption) error {
	if fn == nil {
		return ErrNilTask
	}
	items, err := readItems(filename)
	if err != nil {
		return err
	}
	return m.SubmitTasks(fn, items, opts...)
}

func (m *Manager) enqueue(execs ...*execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return ErrManagerClosed
	}
	m.queue = append(m.queue, execs...)
	m.outstanding += len(execs)
	m.stats.addSubmitted(len(execs))
	for range execs {
		m.metrics.taskQueued()
		m.queueCond.Signal()
	}
	return nil
}

func (m *Manager) worker(id int) {
	defer m.workers.Done()
	log := m.logger.With(zap.Int("worker", id))
	log.Debug("Worker started")
	for {
		ex := m.dequeue()
		if ex == nil {
			break
		}
		out := m.execute(m.ctx, ex)
		m.finish(ex, out)
		m.complete()
	}
	log.Debug("Worker stopped")
}

// dequeue blocks until an item is available or the manager drains. It
// returns nil only once the queue is empty and no more items will arrive.
func (m *Manager) dequeue() *execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.draining {
		m.queueCond.Wait()
	}
	if len(m.queue) == 0 {
		return nil
	}
	ex := m.queue[0]
	m.queue = m.queue[1:]
	return ex
}

// complete retires one outstanding item and wakes waiters when the run is
// fully drained.
func (m *Manager) complete() {
	m.mu.Lock()
	m.outstanding--
	if m.outstanding == 0 {
		m.doneCond.Broadcast()
	}
	m.mu.Unlock()
}

// Wait blocks until every item submitted so far has resolved. It does not
// close the manager; more work may be submitted afterwards.
func (m *Manager) Wait() {
	m.mu.Lock()
	for m.outstanding > 0 {
		m.doneCond.Wait()
	}
	m.mu.Unlock()
}

// Statistics reports the counts and failures accumulated so far. It is safe
// to call at any point, including while tasks are still running.
func (m *Manager) Statistics() Statistics {
	return m.statistics()
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Close stops intake, cancels queued items that have not started, interrupts
// running attempts through context cancellation, and waits for every
// outstanding item to resolve. It is idempotent; later calls return the
// first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.state.Store(int32(StateDraining))

		m.mu.Lock()
		m.draining = true
		stolen := m.queue
		m.queue = nil
		m.queueCond.Broadcast()
		m.mu.Unlock()

		m.logger.Info("Draining task manager",
			zap.String("run_id", m.runID),
			zap.Int("cancelled_in_queue", len(stolen)))

		m.cancel()
		for _, ex := range stolen {
			m.discard(ex, ErrManagerClosed)
			m.complete()
		}

		m.Wait()
		m.workers.Wait()
		m.markClosed()
		m.closeErr = m.shutdownTracing()
		m.state.Store(int32(StateClosed))

		stats := m.statistics()
		m.logger.Info("Task manager closed",
			zap.String("run_id", m.runID),
			zap.Int("submitted", stats.Submitted),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("cancelled", stats.Cancelled),
			zap.Duration("duration", stats.Duration))
	})
	return m.closeErr
}
