// Package metrics provides Prometheus metrics for the interview service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	StateTransitions *prometheus.CounterVec
	TurnErrors       *prometheus.CounterVec
	TurnsFinalized   *prometheus.CounterVec

	ModelFirstDelta prometheus.Histogram
	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec

	EventPublishTotal  *prometheus.CounterVec
	EventPublishErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of live voice sessions currently connected",
		}),
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live voice sessions opened",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Voice turn state transitions",
		}, []string{"from", "to"}),
		TurnErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_errors_total",
			Help:      "Recoverable turn failures by kind",
		}, []string{"kind"}),
		TurnsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_finalized_total",
			Help:      "Conversation turns committed to prompt history",
		}, []string{"role"}),
		ModelFirstDelta: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_first_delta_seconds",
			Help:      "Time from model submission to first streamed delta",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_seconds",
			Help:      "Latency of third-party provider calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider", "op"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Failed third-party provider calls",
		}, []string{"provider", "op"}),
		EventPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Turn events published",
		}, []string{"topic"}),
		EventPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Turn events that failed to publish",
		}, []string{"topic"}),
	}
}

// RecordTransition records a voice turn state change.
func (m *Metrics) RecordTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordTurnError records a recoverable failure.
func (m *Metrics) RecordTurnError(kind string) {
	m.TurnErrors.WithLabelValues(kind).Inc()
}

// RecordTurnFinalized records a turn committed to prompt history.
func (m *Metrics) RecordTurnFinalized(role string) {
	m.TurnsFinalized.WithLabelValues(role).Inc()
}

// RecordProviderCall records one provider round-trip.
func (m *Metrics) RecordProviderCall(provider, op string, err error, seconds float64) {
	m.ProviderLatency.WithLabelValues(provider, op).Observe(seconds)
	if err != nil {
		m.ProviderErrors.WithLabelValues(provider, op).Inc()
	}
}

// RecordPublish records a turn event publish attempt.
func (m *Metrics) RecordPublish(topic string, err error) {
	m.EventPublishTotal.WithLabelValues(topic).Inc()
	if err != nil {
		m.EventPublishErrors.WithLabelValues(topic).Inc()
	}
}

// SessionOpened records a live session connecting.
func (m *Metrics) SessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// SessionClosed records a live session ending.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}
