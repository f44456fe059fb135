package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grievance"

// Metrics exposes Prometheus collectors for the service. A nil *Metrics is a no-op.
type Metrics struct {
	requests          *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	sideEffectErrors  *prometheus.CounterVec
	circuitState      *prometheus.GaugeVec
	sweepDuration     prometheus.Histogram
	slaAtRisk         *prometheus.GaugeVec
	uploadQueueLength prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Failed HTTP requests by route, method and error code.",
		}, []string{"route", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transition attempts by action and outcome code.",
		}, []string{"action", "result"}),
		sideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "History appends and event publishes that failed after the grievance was saved.",
		}, []string{"kind"}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identity_circuit_state",
			Help:      "Identity directory circuit breaker state (0 closed, 1 half-open, 2 open).",
		}, []string{"breaker"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sla_sweep_duration_seconds",
			Help:      "Duration of SLA sweeps in seconds.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		slaAtRisk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sla_at_risk",
			Help:      "Open grievances breaching SLA or already escalated, per department.",
		}, []string{"department"}),
		uploadQueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upload_queue_length",
			Help:      "Document uploads waiting for a worker.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.requests,
			m.requestLatency,
			m.errors,
			m.transitions,
			m.sideEffectErrors,
			m.circuitState,
			m.sweepDuration,
			m.slaAtRisk,
			m.uploadQueueLength,
		)
	}
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a transition attempt; result is "ok" or an error code.
func (m *Metrics) RecordTransition(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

// RecordSideEffectFailure counts a post-commit task that did not complete.
func (m *Metrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectErrors.WithLabelValues(kind).Inc()
}

// SetCircuitState records the numeric breaker state.
func (m *Metrics) SetCircuitState(breaker string, state float64) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(breaker).Set(state)
}

// ObserveSweep records a finished sweep and the at-risk count per department.
func (m *Metrics) ObserveSweep(duration time.Duration, atRiskByDepartment map[string]int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.slaAtRisk.Reset()
	for dept, count := range atRiskByDepartment {
		m.slaAtRisk.WithLabelValues(dept).Set(float64(count))
	}
}

// SetUploadQueueLength records pending uploads.
func (m *Metrics) SetUploadQueueLength(n int) {
	if m == nil {
		return
	}
	m.uploadQueueLength.Set(float64(n))
}

// SideEffectFailures returns the collector for assertions in tests.
func (m *Metrics) SideEffectFailures() *prometheus.CounterVec {
	return m.sideEffectErrors
}

// Transitions returns the collector for assertions in tests.
func (m *Metrics) Transitions() *prometheus.CounterVec {
	return m.transitions
}

// CircuitState returns the collector for assertions in tests.
func (m *Metrics) CircuitState() *prometheus.GaugeVec {
	return m.circuitState
}
