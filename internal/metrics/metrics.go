// Package metrics exposes conversion counters and timings for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-converter/internal/convert"
)

// Metrics is registered on its own registry so tests can create as many as
// they need.
type Metrics struct {
	registry *prometheus.Registry

	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	batches  *prometheus.CounterVec
	rejected prometheus.Counter
	inflight prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converter",
			Name:      "items_total",
			Help:      "Processed items by operation, outcome and failure type.",
		}, []string{"operation", "outcome", "failure_type"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "converter",
			Name:      "item_duration_seconds",
			Help:      "Time spent on one item.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"operation"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converter",
			Name:      "bytes_total",
			Help:      "Input and output bytes of completed items.",
		}, []string{"operation", "direction"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "converter",
			Name:      "batches_total",
			Help:      "Finished batches by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "converter",
			Name:      "rejected_files_total",
			Help:      "Files refused by the intake filter.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "converter",
			Name:      "batches_running",
			Help:      "Batches currently running.",
		}),
	}
	m.registry.MustRegister(m.items, m.duration, m.bytes, m.batches, m.rejected, m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveItem records one finished item. err is nil on success.
func (m *Metrics) ObserveItem(operation string, elapsed time.Duration, inBytes, outBytes int64, err error) {
	if err != nil {
		m.ObserveFailure(operation, elapsed, string(convert.ClassifyError(err)))
		return
	}
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.items.WithLabelValues(operation, "completed", "").Inc()
	m.bytes.WithLabelValues(operation, "in").Add(float64(inBytes))
	m.bytes.WithLabelValues(operation, "out").Add(float64(outBytes))
}

// ObserveFailure records a failed item whose error was already classified.
func (m *Metrics) ObserveFailure(operation string, elapsed time.Duration, failureType string) {
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	m.items.WithLabelValues(operation, "error", failureType).Inc()
}

func (m *Metrics) ObserveRejected(n int) {
	if n > 0 {
		m.rejected.Add(float64(n))
	}
}

// BatchStarted increments the running gauge; call the returned func with
// the outcome when the batch ends.
func (m *Metrics) BatchStarted(operation string) func(outcome string) {
	m.inflight.Inc()
	return func(outcome string) {
		m.inflight.Dec()
		m.batches.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
