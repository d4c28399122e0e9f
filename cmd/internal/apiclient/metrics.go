package apiclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded in glowguard_client_refresh_total.
const (
	refreshSuccess = "success"
	refreshFailure = "failure"
	refreshNoToken = "no_token"
	refreshSkipped = "skipped"
)

// Metrics is the client's Prometheus instrumentation.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Refresh  *prometheus.CounterVec
	Retries  prometheus.Counter
}

// NewMetrics builds the client collectors and registers them on reg.
// A nil reg leaves them unregistered (tests, embedded use).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowguard",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Backend round trips by method and status class.",
		}, []string{"method", "class"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "glowguard",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend round-trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "glowguard",
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Access credential refresh attempts by outcome.",
		}, []string{"result"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "glowguard",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Requests re-sent after a successful refresh.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration, m.Refresh, m.Retries)
	}
	return m
}

func (m *Metrics) observeRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, statusClass(status)).Inc()
	m.Duration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.Refresh.WithLabelValues(result).Inc()
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
