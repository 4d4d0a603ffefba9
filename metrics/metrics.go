// Package metrics exposes the Prometheus instrumentation surface for the
// backtest engine on a private registry (never the global default), mirroring
// the teacher's promauto-on-a-custom-registry pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the private Prometheus registry for backtestcore metrics.
var Registry = prometheus.NewRegistry()

var (
	// TickersProcessedTotal counts tickers processed per backtest run,
	// labeled by outcome ("success" or "failure").
	TickersProcessedTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtest",
			Name:      "tickers_processed_total",
			Help:      "Total number of tickers processed, by result",
		},
		[]string{"result"},
	)

	// WorkerDuration tracks per-ticker worker wall-clock time.
	WorkerDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "backtest",
			Subsystem: "worker",
			Name:      "duration_seconds",
			Help:      "Per-ticker backtest worker duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// CacheUsageBytes tracks the OHLCV cache's current byte usage.
	CacheUsageBytes = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ohlcv",
			Subsystem: "cache",
			Name:      "usage_bytes",
			Help:      "Current OHLCV cache usage in bytes",
		},
	)

	// CacheHitsTotal and CacheMissesTotal track OHLCV cache effectiveness.
	CacheHitsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "ohlcv",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total OHLCV cache hits",
		},
	)
	CacheMissesTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: "ohlcv",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total OHLCV cache misses",
		},
	)

	// QueueBrokerDepth tracks per-queue pending item count.
	QueueBrokerDepth = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "queue",
			Subsystem: "broker",
			Name:      "depth",
			Help:      "Pending item count per queue",
		},
		[]string{"queue"},
	)

	// PortfolioExecutionsFilteredTotal tracks phase-2 rejections by reason.
	PortfolioExecutionsFilteredTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "executions_filtered_total",
			Help:      "Total phase-2 executions filtered out, by reason",
		},
		[]string{"reason"},
	)
)

// Init registers the standard Go runtime/process collectors alongside the
// backtest-specific ones above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// RecordTickerResult increments the per-outcome ticker counter.
func RecordTickerResult(success bool) {
	if success {
		TickersProcessedTotal.WithLabelValues("success").Inc()
		return
	}
	TickersProcessedTotal.WithLabelValues("failure").Inc()
}

// RecordCacheUsage sets the current cache usage gauge.
func RecordCacheUsage(bytes int64) {
	CacheUsageBytes.Set(float64(bytes))
}

// RecordQueueDepth sets the depth gauge for queue.
func RecordQueueDepth(queue string, depth int) {
	QueueBrokerDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordPortfolioFiltered increments the filtered-executions counter for
// reason.
func RecordPortfolioFiltered(reason string) {
	PortfolioExecutionsFilteredTotal.WithLabelValues(reason).Inc()
}
