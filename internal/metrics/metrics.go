// Package metrics exposes board counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	snapshots  *prometheus.CounterVec
	dropped    prometheus.Counter
}

// New registers the board collectors plus the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_operations_total",
			Help: "Message store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_snapshots_total",
			Help: "Snapshot saves by outcome.",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "board_feed_dropped_total",
			Help: "Live feed events skipped because a subscriber buffer was full.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.snapshots,
		m.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordOperation implements the store's Recorder.
func (m *Metrics) RecordOperation(op, outcome string) {
	m.operations.WithLabelValues(op, outcome).Inc()
}

// RecordSnapshot counts a snapshot attempt.
func (m *Metrics) RecordSnapshot(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.snapshots.WithLabelValues(outcome).Inc()
}

// FeedDropped implements the feed hub's DropCounter.
func (m *Metrics) FeedDropped() {
	m.dropped.Inc()
}

// TrackStored exposes the current store size as a gauge.
func (m *Metrics) TrackStored(size func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "board_messages_stored",
		Help: "Messages currently held by the store.",
	}, func() float64 { return float64(size()) }))
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Operations exposes the operation counter for assertions.
func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}
