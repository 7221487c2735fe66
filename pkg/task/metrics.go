package task

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runMetrics holds the optional Prometheus instrumentation of a manager. A
// nil *runMetrics is valid and turns every observation into a no-op.
type runMetrics struct {
	outcomes *prometheus.CounterVec
	attempts prometheus.Counter
	duration prometheus.Histogram
	queued   prometheus.Gauge
	active   prometheus.Gauge
}

// newRunMetrics builds and registers the engine collectors. Metric names are
// fixed; the task name travels as a constant label so several managers can
// share one registry.
func newRunMetrics(reg prometheus.Registerer, taskName string) (*runMetrics, error) {
	labels := prometheus.Labels{"task": taskName}

	m := &runMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sisyphus_tasks_total",
			Help:        "Terminal task outcomes, partitioned by kind.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sisyphus_attempts_total",
			Help:        "Task function invocations, retries included.",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "sisyphus_task_duration_seconds",
			Help:        "Wall time per item from first attempt to terminal outcome.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sisyphus_tasks_queued",
			Help:        "Items accepted but not yet started.",
			ConstLabels: labels,
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sisyphus_tasks_active",
			Help:        "Items currently executing.",
			ConstLabels: labels,
		}),
	}

	for name, c := range map[string]prometheus.Collector{
		"sisyphus_tasks_total":           m.outcomes,
		"sisyphus_attempts_total":        m.attempts,
		"sisyphus_task_duration_seconds": m.duration,
		"sisyphus_tasks_queued":          m.queued,
		"sisyphus_tasks_active":          m.active,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering %q: %w", name, err)
		}
	}
	return m, nil
}

// taskQueued counts an accepted item that has not started yet.
func (m *runMetrics) taskQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

// taskStarted moves an item from the queue gauge to the active gauge.
func (m *runMetrics) taskStarted() {
	if m == nil {
		return
	}
	m.queued.Dec()
	m.active.Inc()
}

// taskExecuted records a terminal outcome produced by the attempt loop.
func (m *runMetrics) taskExecuted(out Outcome, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.outcomes.WithLabelValues(string(out.Kind)).Inc()
	m.attempts.Add(float64(attempts))
	m.duration.Observe(elapsed.Seconds())
}

// taskDiscarded records an item cancelled before its first attempt.
func (m *runMetrics) taskDiscarded() {
	if m == nil {
		return
	}
	m.queued.Dec()
	m.outcomes.WithLabelValues(string(KindCancelled)).Inc()
}
