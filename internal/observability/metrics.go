// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Trading metrics
	TradesExecuted *prometheus.CounterVec
	TradeErrors    *prometheus.CounterVec
	QuoteVolume    *prometheus.CounterVec
	FeesCollected  prometheus.Counter
	TradeLatency   prometheus.Histogram

	// Pool metrics
	PoolsCreated         prometheus.Counter
	ActivePools          prometheus.Gauge
	GraduationsStarted   prometheus.Counter
	GraduationsCompleted prometheus.Counter

	// Feed metrics
	FeedSubscribers    prometheus.Gauge
	FeedClientsDropped prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_curve_engine"
	}

	return &Metrics{
		// Trading metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades by side",
		}, []string{"side"}),
		TradeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trade_errors_total",
			Help:      "Total number of rejected trades by error kind",
		}, []string{"kind"}),
		QuoteVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "quote_volume_total",
			Help:      "Total quote-side volume by side",
		}, []string{"side"}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "fees_collected_total",
			Help:      "Total fees skimmed from trade inputs",
		}),
		TradeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "execution_latency_seconds",
			Help:      "Trade execution latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Pool metrics
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pools",
			Name:      "created_total",
			Help:      "Total number of pools created",
		}),
		ActivePools: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pools",
			Name:      "active",
			Help:      "Current number of pools in the ACTIVE state",
		}),
		GraduationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pools",
			Name:      "graduations_started_total",
			Help:      "Total number of pools that crossed the graduation threshold",
		}),
		GraduationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pools",
			Name:      "graduations_completed_total",
			Help:      "Total number of pools that completed migration",
		}),

		// Feed metrics
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of WebSocket feed subscribers",
		}),
		FeedClientsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients_dropped_total",
			Help:      "Total number of feed clients dropped for slow consumption",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTrade records a successfully executed trade.
func RecordTrade(side string, quoteVolume, feePaid uint64, latencySeconds float64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(side).Inc()
	DefaultMetrics.QuoteVolume.WithLabelValues(side).Add(float64(quoteVolume))
	DefaultMetrics.FeesCollected.Add(float64(feePaid))
	DefaultMetrics.TradeLatency.Observe(latencySeconds)
}

// RecordTradeError records a rejected trade by error kind.
func RecordTradeError(kind string) {
	DefaultMetrics.TradeErrors.WithLabelValues(kind).Inc()
}

// RecordPoolCreated increments the pool creation counter and active gauge.
func RecordPoolCreated() {
	DefaultMetrics.PoolsCreated.Inc()
	DefaultMetrics.ActivePools.Inc()
}

// RecordGraduationStarted records a pool crossing its graduation threshold.
func RecordGraduationStarted() {
	DefaultMetrics.GraduationsStarted.Inc()
	DefaultMetrics.ActivePools.Dec()
}

// RecordGraduationCompleted records a finished migration.
func RecordGraduationCompleted() {
	DefaultMetrics.GraduationsCompleted.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
