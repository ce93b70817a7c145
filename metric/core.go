package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the gateway-wide request metrics. Component-specific
// metrics (e.g. the response cache's hit/miss counters) are registered
// separately by their owners.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	QueryComplexity prometheus.Histogram
	QueryDepth      prometheus.Histogram
	RejectedQueries *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all gateway metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tftgateway",
				Subsystem: "requests",
				Name:      "total",
				Help:      "Total number of query requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tftgateway",
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Query request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		QueryComplexity: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tftgateway",
				Subsystem: "analyzer",
				Name:      "query_complexity",
				Help:      "Estimated complexity score of analyzed queries",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),

		QueryDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "tftgateway",
				Subsystem: "analyzer",
				Name:      "query_depth",
				Help:      "Maximum selection depth of analyzed queries",
				Buckets:   prometheus.LinearBuckets(1, 1, 15),
			},
		),

		RejectedQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tftgateway",
				Subsystem: "analyzer",
				Name:      "rejected_total",
				Help:      "Total number of queries rejected by the validation gate",
			},
			[]string{"reason"},
		),
	}
}

// ObserveRequest records a completed request with its duration and outcome.
func (m *Metrics) ObserveRequest(operation, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveAnalysis records the analyzer's verdict for a query.
func (m *Metrics) ObserveAnalysis(complexity, depth int) {
	m.QueryComplexity.Observe(float64(complexity))
	m.QueryDepth.Observe(float64(depth))
}

// ObserveRejection records a query rejected by the validation gate.
func (m *Metrics) ObserveRejection(reason string) {
	m.RejectedQueries.WithLabelValues(reason).Inc()
}
