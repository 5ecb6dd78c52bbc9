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
type Metrics struct {
	// Pipeline metrics
	CheckpointsCommitted prometheus.Counter
	LatestSequence       prometheus.Gauge
	ProcessingLatency    prometheus.Histogram
	CheckpointLag        prometheus.Histogram

	// Decode metrics
	EventsDecoded      *prometheus.CounterVec
	UnrecognizedEvents prometheus.Counter

	// Risk metrics
	HealthChecksRun   prometheus.Counter
	LiquidatableFound prometheus.Counter
	OrdersCreated     *prometheus.CounterVec
	OpenOrders        prometheus.Gauge

	// Arbitrage metrics
	GraphEdges            prometheus.Gauge
	CycleSearches         prometheus.Counter
	OpportunitiesDetected prometheus.Counter

	// Feed metrics
	OrdersPublished       prometheus.Counter
	ExecutionResultsSeen  *prometheus.CounterVec
	PriceStreamReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sui_mev_indexer"
	}

	return &Metrics{
		CheckpointsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "checkpoints_committed_total",
			Help:      "Total number of checkpoints committed in order",
		}),
		LatestSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "latest_sequence",
			Help:      "Sequence number of the last committed checkpoint",
		}),
		ProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "processing_latency_seconds",
			Help:      "Fetch-to-commit latency per checkpoint in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		CheckpointLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "checkpoint_lag_seconds",
			Help:      "Delay between checkpoint production on chain and commit",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		}),

		EventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "events_decoded_total",
			Help:      "Total number of decoded events by kind",
		}, []string{"kind"}),
		UnrecognizedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "unrecognized_events_total",
			Help:      "Total number of events no decoder could handle",
		}),

		HealthChecksRun: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "health_checks_total",
			Help:      "Total number of borrower health factor evaluations",
		}),
		LiquidatableFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "liquidatable_found_total",
			Help:      "Total number of borrowers found below the liquidation threshold",
		}),
		OrdersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "orders_created_total",
			Help:      "Total number of liquidation orders created by platform",
		}, []string{"platform"}),
		OpenOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "open_orders",
			Help:      "Current number of open liquidation orders",
		}),

		GraphEdges: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "arb",
			Name:      "graph_edges",
			Help:      "Current number of pool edges in the opportunity graph",
		}),
		CycleSearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arb",
			Name:      "cycle_searches_total",
			Help:      "Total number of cycle searches run",
		}),
		OpportunitiesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arb",
			Name:      "opportunities_detected_total",
			Help:      "Total number of profitable cycles detected",
		}),

		OrdersPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "orders_published_total",
			Help:      "Total number of liquidation orders published to the feed",
		}),
		ExecutionResultsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "execution_results_total",
			Help:      "Total number of execution write-backs by status",
		}, []string{"status"}),
		PriceStreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "price_stream_reconnects_total",
			Help:      "Total number of oracle stream reconnects",
		}),
	}
}

// CheckpointCommitted records one committed checkpoint.
func (m *Metrics) CheckpointCommitted(seq uint64, processing, lag time.Duration) {
	m.CheckpointsCommitted.Inc()
	m.LatestSequence.Set(float64(seq))
	m.ProcessingLatency.Observe(processing.Seconds())
	m.CheckpointLag.Observe(lag.Seconds())
}

// EventDecoded counts one decoded event of the given kind.
func (m *Metrics) EventDecoded(kind string) {
	m.EventsDecoded.WithLabelValues(kind).Inc()
}

// UnrecognizedEvent counts one event no decoder could handle.
func (m *Metrics) UnrecognizedEvent() {
	m.UnrecognizedEvents.Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
