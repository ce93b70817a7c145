package invalidation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/s0mar1/tftai.gg-sub000/metric"
)

// managerMetrics exposes invalidation activity as Prometheus metrics.
type managerMetrics struct {
	events        *prometheus.CounterVec
	removed       prometheus.Histogram
	auditRetained prometheus.Gauge
}

// newManagerMetrics creates and registers the manager's metrics.
func newManagerMetrics(registry *metric.MetricsRegistry) (*managerMetrics, error) {
	m := &managerMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tftgateway",
			Subsystem: "invalidation",
			Name:      "events_total",
			Help:      "Total invalidation operations by event type",
		}, []string{"type"}),
		removed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tftgateway",
			Subsystem: "invalidation",
			Name:      "entries_removed",
			Help:      "Cache entries removed per invalidation operation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		auditRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tftgateway",
			Subsystem: "invalidation",
			Name:      "audit_events",
			Help:      "Audit events currently retained in the history ring",
		}),
	}

	if err := registry.RegisterCounterVec("invalidation", "events", m.events); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("invalidation", "entries_removed", m.removed); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("invalidation", "audit_events", m.auditRetained); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *managerMetrics) recordEvent(evType EventType, removed, retained int) {
	m.events.WithLabelValues(string(evType)).Inc()
	m.removed.Observe(float64(removed))
	m.auditRetained.Set(float64(retained))
}
