package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/lodcache/cache"
	"github.com/IvanBrykalov/lodcache/executor"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	loadFailed prometheus.Counter
	overBudget prometheus.Counter
	evicts     *prometheus.CounterVec
	objects    prometheus.Gauge
	usedBytes  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		})
	}
	a := &Adapter{
		hits:       counter("hits_total", "Cache hits"),
		misses:     counter("misses_total", "Cache misses"),
		loadFailed: counter("load_failures_total", "Loader calls that returned an error"),
		overBudget: counter("over_budget_total", "Eviction passes that ended above the memory target"),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		objects:   gauge("objects", "Number of loaded objects"),
		usedBytes: gauge("used_bytes", "Bytes held by loaded objects"),
	}
	reg.MustRegister(a.hits, a.misses, a.loadFailed, a.overBudget, a.evicts, a.objects, a.usedBytes)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the number of objects and used bytes.
func (a *Adapter) Size(objects int64, usedBytes int64) {
	a.objects.Set(float64(objects))
	a.usedBytes.Set(float64(usedBytes))
}

func (a *Adapter) LoadFailed() { a.loadFailed.Inc() }

func (a *Adapter) OverBudget() { a.overBudget.Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

// ExecutorAdapter implements executor.Metrics.
type ExecutorAdapter struct {
	pending    prometheus.Gauge
	dispatched prometheus.Counter
	cleared    prometheus.Counter
	latency    prometheus.Histogram
}

// NewExecutor registers executor metrics under ns/sub.
func NewExecutor(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *ExecutorAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &ExecutorAdapter{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "pending",
			Help:        "Executables waiting for their preconditions",
			ConstLabels: constLabels,
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "dispatched_total",
			Help:        "Executables handed to the worker pool",
			ConstLabels: constLabels,
		}),
		cleared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "cleared_total",
			Help:        "Executables dropped by Clear before running",
			ConstLabels: constLabels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "execute_seconds",
			Help:        "Execution time of one executable",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.pending, a.dispatched, a.cleared, a.latency)
	return a
}

func (a *ExecutorAdapter) Scheduled(n int) { a.pending.Add(float64(n)) }

func (a *ExecutorAdapter) Dispatched() {
	a.pending.Dec()
	a.dispatched.Inc()
}

func (a *ExecutorAdapter) Cleared(n int) {
	a.pending.Sub(float64(n))
	a.cleared.Add(float64(n))
}

func (a *ExecutorAdapter) Completed(d time.Duration) { a.latency.Observe(d.Seconds()) }

var _ executor.Metrics = (*ExecutorAdapter)(nil)
