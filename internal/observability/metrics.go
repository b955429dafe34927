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
	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Recalculation metrics
	RecalculationsTotal  *prometheus.CounterVec
	RecalculationErrors  *prometheus.CounterVec
	RecalculationLatency *prometheus.HistogramVec
	CoalescedRequests    prometheus.Counter
	DebounceCollapsed    prometheus.Counter

	// Datastore metrics
	HistoryPointsStored  prometheus.Counter
	IntradayPointsStored prometheus.Counter
	IntradayPointsPruned prometheus.Counter

	// Price feed metrics
	PriceUpdatesReceived prometheus.Counter
	PriceFeedReconnects  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered on reg.
// Pass prometheus.DefaultRegisterer for global exposition.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "portfolio_engine"
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits by entry kind",
		}, []string{"kind"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses by entry kind",
		}, []string{"kind"}),

		RecalculationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recalculations_total",
			Help:      "Total number of recalculations by kind",
		}, []string{"kind"}),
		RecalculationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recalculation_errors_total",
			Help:      "Total number of failed recalculations by kind",
		}, []string{"kind"}),
		RecalculationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "recalculation_duration_seconds",
			Help:      "Recalculation duration in seconds by kind",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"kind"}),
		CoalescedRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "coalesced_requests_total",
			Help:      "Total number of requests attached to an in-flight recalculation",
		}),
		DebounceCollapsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "debounce_collapsed_total",
			Help:      "Total number of change notifications collapsed by debouncing",
		}),

		HistoryPointsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "history_points_stored_total",
			Help:      "Total number of daily history points upserted",
		}),
		IntradayPointsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "intraday_points_stored_total",
			Help:      "Total number of intraday samples stored",
		}),
		IntradayPointsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "intraday_points_pruned_total",
			Help:      "Total number of intraday samples pruned past retention",
		}),

		PriceUpdatesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "updates_received_total",
			Help:      "Total number of price updates received from the feed",
		}),
		PriceFeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricefeed",
			Name:      "reconnects_total",
			Help:      "Total number of price feed reconnect attempts",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
