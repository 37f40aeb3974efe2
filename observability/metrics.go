// Package observability exposes the settlement prometheus metrics and
// tracer.
package observability

import (
	"sync"
	"time"

	"finco/settlement/errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "settlement"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

type SettlementMetrics struct {
	requests      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	records       *prometheus.GaugeVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the lazily registered settlement metrics.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Settlement operations segmented by operation and outcome code.",
			}, []string{"operation", "outcome"}),
			fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "venue_fallbacks_total",
				Help:      "Venue fallbacks taken after a fallback-eligible failure.",
			}, []string{"from", "to"}),
			confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "confirmations_total",
				Help:      "Confirmation waits segmented by outcome.",
			}, []string{"outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Latency of settlement operations.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			}, []string{"operation"}),
			records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ephemeral_records",
				Help:      "Live prepared transaction and execution context records.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			settlementRegistry.requests,
			settlementRegistry.fallbacks,
			settlementRegistry.confirmations,
			settlementRegistry.latency,
			settlementRegistry.records,
		)
	})
	return settlementRegistry
}

// Observe records one operation. A nil error counts as success; otherwise
// the outcome is the error code.
func (m *SettlementMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *SettlementMetrics) Fallback(from, to string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(from, to).Inc()
}

func (m *SettlementMetrics) Confirmation(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(errors.CodeOf(err))
	}
	m.confirmations.WithLabelValues(outcome).Inc()
}

func (m *SettlementMetrics) Records(kind string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(kind).Set(float64(n))
}
