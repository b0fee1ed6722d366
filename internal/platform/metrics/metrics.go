package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PunchDecisions    *prometheus.CounterVec
	AuthorizeDuration prometheus.Histogram
	ChangeRequests    *prometheus.CounterVec
	Reviews           *prometheus.CounterVec
	ImmediateBinds    prometheus.Counter
	AllowlistUpdates  prometheus.Counter
	MalformedRules    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PunchDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftgate_punch_decisions_total",
			Help: "Attendance gate decisions by outcome and deny reason",
		}, []string{"outcome", "reason"}),
		AuthorizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiftgate_authorize_duration_seconds",
			Help:    "Latency of attendance gate authorization",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		ChangeRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftgate_device_change_requests_total",
			Help: "Device change request submissions by result",
		}, []string{"result"}),
		Reviews: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftgate_device_change_reviews_total",
			Help: "Device change reviews by action and result",
		}, []string{"action", "result"}),
		ImmediateBinds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shiftgate_admin_immediate_binds_total",
			Help: "Device bindings applied through the admin immediate-bind path",
		}),
		AllowlistUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shiftgate_allowlist_updates_total",
			Help: "Company and per-identity allowlist updates",
		}),
		MalformedRules: promauto.NewCounter(prometheus.CounterOpts{
			Name: "shiftgate_allowlist_malformed_rules_total",
			Help: "Stored allowlist rules skipped because they failed to parse",
		}),
	}
}

// ObservePunchDecision records a gate decision with its latency.
func (m *Metrics) ObservePunchDecision(outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PunchDecisions.WithLabelValues(outcome, reason).Inc()
	m.AuthorizeDuration.Observe(elapsed.Seconds())
}

// IncrementChangeRequests records a change request submission result.
func (m *Metrics) IncrementChangeRequests(result string) {
	if m == nil {
		return
	}
	m.ChangeRequests.WithLabelValues(result).Inc()
}

// IncrementReviews records a review action result.
func (m *Metrics) IncrementReviews(action, result string) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(action, result).Inc()
}

// IncrementImmediateBinds records an admin immediate bind.
func (m *Metrics) IncrementImmediateBinds() {
	if m == nil {
		return
	}
	m.ImmediateBinds.Inc()
}

// IncrementAllowlistUpdates records an allowlist write.
func (m *Metrics) IncrementAllowlistUpdates() {
	if m == nil {
		return
	}
	m.AllowlistUpdates.Inc()
}

// IncrementMalformedRules records a skipped unparseable allowlist rule.
func (m *Metrics) IncrementMalformedRules() {
	if m == nil {
		return
	}
	m.MalformedRules.Inc()
}
