package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the guard services.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	GatewayRequests   *prometheus.CounterVec
	GatewayDuration   prometheus.Histogram
	HeartbeatChecks   *prometheus.CounterVec
	ExpiryTransitions *prometheus.CounterVec
	ExpirySuppressed  prometheus.Counter
	ExpiryStale       prometheus.Counter
	LoginAttempts     *prometheus.CounterVec
}

// NewMetrics creates and registers all guard metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		GatewayRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "gateway_requests_total",
				Help:      "Total authenticated requests by outcome",
			},
			[]string{"outcome"}, // ok/unauthenticated/expired/connection
		),
		GatewayDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sessionguard",
				Name:      "gateway_request_duration_seconds",
				Help:      "Authenticated request round-trip time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		HeartbeatChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "heartbeat_checks_total",
				Help:      "Total credential verifications by trigger and result",
			},
			[]string{"trigger", "result"}, // result=ok/skipped/rejected/failed/unreachable
		),
		ExpiryTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "expiry_transitions_total",
				Help:      "Total logged-out transitions by reason",
			},
			[]string{"reason"},
		),
		ExpirySuppressed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "expiry_suppressed_total",
				Help:      "Expiry requests dropped because a transition was already in progress",
			},
		),
		ExpiryStale: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "expiry_stale_total",
				Help:      "Expiry requests dropped because the failing credential was no longer the session's",
			},
		),
		LoginAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Name:      "login_attempts_total",
				Help:      "Total login attempts by result",
			},
			[]string{"result"}, // result=ok/invalid/rejected/connection/error
		),
	}
}

func (m *Metrics) gatewayRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		m.GatewayDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) heartbeatCheck(trigger Trigger, result string) {
	if m == nil {
		return
	}
	m.HeartbeatChecks.WithLabelValues(string(trigger), result).Inc()
}

func (m *Metrics) expiryTransition(reason Reason) {
	if m == nil {
		return
	}
	m.ExpiryTransitions.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) expirySuppressed() {
	if m == nil {
		return
	}
	m.ExpirySuppressed.Inc()
}

func (m *Metrics) expiryStale() {
	if m == nil {
		return
	}
	m.ExpiryStale.Inc()
}

func (m *Metrics) loginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}
