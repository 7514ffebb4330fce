// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Trade metrics
	TradesTotal    *prometheus.CounterVec
	TradeDuration  *prometheus.HistogramVec
	LockContention prometheus.Counter
	FeeTransfers   *prometheus.CounterVec
	QuoteRefetches prometheus.Counter

	// Flow metrics
	FlowInputs *prometheus.CounterVec

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec

	registry prometheus.Gatherer
}

// NewMetrics creates a Metrics instance registered on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg, namespace)
}

// NewMetricsWith registers metrics on reg; gatherer backs Handler.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "flashsol"
	}
	f := promauto.With(reg)

	return &Metrics{
		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_total",
			Help:      "Total number of trades by direction and outcome kind",
		}, []string{"direction", "outcome"}),
		TradeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_duration_seconds",
			Help:      "Trade execution duration from lock to result",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		}, []string{"direction"}),
		LockContention: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Total number of trades rejected because another operation held the lock",
		}),
		FeeTransfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_transfer_total",
			Help:      "Service fee transfers by result (sent, skipped, failed)",
		}, []string{"result"}),
		QuoteRefetches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_refetch_total",
			Help:      "Total number of quotes re-fetched because they went stale",
		}),
		FlowInputs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flow",
			Name:      "inputs_total",
			Help:      "Conversational inputs handled by flow and step",
		}, []string{"flow", "step"}),
		StoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Ephemeral store operation latency",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"operation"}),
		StoreOpErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_errors_total",
			Help:      "Ephemeral store operation errors",
		}, []string{"operation"}),
		registry: gatherer,
	}
}

// ObserveTrade records the outcome of one trade.
func (m *Metrics) ObserveTrade(direction, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(direction, outcome).Inc()
	m.TradeDuration.WithLabelValues(direction).Observe(d.Seconds())
}

// ObserveContention records a trade rejected by the lock.
func (m *Metrics) ObserveContention() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

// ObserveFee records a fee transfer result: "sent", "skipped" or "failed".
func (m *Metrics) ObserveFee(result string) {
	if m == nil {
		return
	}
	m.FeeTransfers.WithLabelValues(result).Inc()
}

// ObserveRefetch records a stale quote being re-fetched.
func (m *Metrics) ObserveRefetch() {
	if m == nil {
		return
	}
	m.QuoteRefetches.Inc()
}

// ObserveInput records a flow input.
func (m *Metrics) ObserveInput(flow, step string) {
	if m == nil {
		return
	}
	m.FlowInputs.WithLabelValues(flow, step).Inc()
}

// ObserveStoreOp records one store call.
func (m *Metrics) ObserveStoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.StoreOpErrors.WithLabelValues(op).Inc()
	}
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
