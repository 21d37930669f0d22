package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the chat daemon.
type Metrics struct {
	registry       *prometheus.Registry
	StreamRequests *prometheus.CounterVec
	StreamDuration *prometheus.HistogramVec
	Fragments      *prometheus.CounterVec
	ActiveSession  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with chat collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codecrew_stream_requests_total",
		Help: "Completion stream requests by agent and outcome",
	}, []string{"agent", "outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codecrew_stream_duration_seconds",
		Help:    "Completion stream duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	frags := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codecrew_stream_fragments_total",
		Help: "Fragments forwarded to clients by agent",
	}, []string{"agent"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "codecrew_transport_active_sessions",
		Help: "Active sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codecrew_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(reqs, durs, frags, active, trErrors)

	return &Metrics{
		registry:       reg,
		StreamRequests: reqs,
		StreamDuration: durs,
		Fragments:      frags,
		ActiveSession:  active,
		TransportErrs:  trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStream records one completed (or failed) stream for an agent.
func (m *Metrics) RecordStream(agent, outcome string, duration time.Duration, fragments int) {
	if m == nil {
		return
	}
	if agent == "" {
		agent = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.StreamRequests.WithLabelValues(agent, outcome).Inc()
	m.StreamDuration.WithLabelValues(agent).Observe(duration.Seconds())
	m.Fragments.WithLabelValues(agent).Add(float64(fragments))
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
