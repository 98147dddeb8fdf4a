package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	transactions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	writes       prometheus.Histogram
	deployments  prometheus.Counter
}

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
	streams   prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics

	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics
)

// Ledger returns the lazily-initialised registry tracking ledger transactions.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tdc",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Ledger transactions segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "tdc",
				Subsystem: "ledger",
				Name:      "transaction_duration_seconds",
				Help:      "Time spent executing a ledger transaction including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			writes: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tdc",
				Subsystem: "ledger",
				Name:      "commit_writes",
				Help:      "Number of state keys written per committed transaction.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			}),
			deployments: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tdc",
				Subsystem: "ledger",
				Name:      "deployments_total",
				Help:      "Ledger instances deployed since start.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.latency,
			ledgerRegistry.writes,
			ledgerRegistry.deployments,
		)
	})
	return ledgerRegistry
}

// ObserveTransaction records the outcome and latency of a transaction.
func (m *ledgerMetrics) ObserveTransaction(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	op := normaliseLabel(operation)
	outcome := "committed"
	if err != nil {
		outcome = "aborted"
	}
	m.transactions.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveCommit records how many keys a committed transaction wrote.
func (m *ledgerMetrics) ObserveCommit(writes int) {
	if m == nil || writes <= 0 {
		return
	}
	m.writes.Observe(float64(writes))
}

// RecordDeployment counts a newly deployed ledger.
func (m *ledgerMetrics) RecordDeployment() {
	if m == nil {
		return
	}
	m.deployments.Inc()
}

// Gateway returns the registry tracking the HTTP surface.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tdc",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "tdc",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tdc",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"route"}),
			streams: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "tdc",
				Subsystem: "gateway",
				Name:      "event_streams",
				Help:      "Open websocket event streams.",
			}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
			gatewayRegistry.streams,
		)
	})
	return gatewayRegistry
}

// Observe records a served request.
func (m *gatewayMetrics) Observe(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := normaliseLabel(route)
	m.requests.WithLabelValues(label, statusLabel(status)).Inc()
	m.latency.WithLabelValues(label).Observe(elapsed.Seconds())
}

// RecordThrottle counts a rate-limited request.
func (m *gatewayMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(normaliseLabel(route)).Inc()
}

// StreamOpened and StreamClosed track websocket subscribers.
func (m *gatewayMetrics) StreamOpened() {
	if m != nil {
		m.streams.Inc()
	}
}

func (m *gatewayMetrics) StreamClosed() {
	if m != nil {
		m.streams.Dec()
	}
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
