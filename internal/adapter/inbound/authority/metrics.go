package authority

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the development authority.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginsTotal     *prometheus.CounterVec
	RevokedTokens   prometheus.Gauge
	RateLimitKeys   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Subsystem: "authority",
				Name:      "requests_total",
				Help:      "Total number of authority requests processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sessionguard",
				Subsystem: "authority",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		LoginsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sessionguard",
				Subsystem: "authority",
				Name:      "logins_total",
				Help:      "Login attempts by result",
			},
			[]string{"result"}, // result=ok/invalid/limited/bad_request
		),
		RevokedTokens: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sessionguard",
				Subsystem: "authority",
				Name:      "revoked_tokens",
				Help:      "Number of revoked tokens not yet expired",
			},
		),
		RateLimitKeys: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sessionguard",
				Subsystem: "authority",
				Name:      "rate_limit_keys",
				Help:      "Number of active login rate limit keys",
			},
		),
	}
}
