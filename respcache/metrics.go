package respcache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/s0mar1/tftai.gg-sub000/metric"
)

// cacheMetrics exposes the cache counters as Prometheus metrics.
type cacheMetrics struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	sets           prometheus.Counter
	invalidations  prometheus.Counter
	entriesRemoved prometheus.Counter
}

// newCacheMetrics creates and registers cache metrics with the registry.
func newCacheMetrics(registry *metric.MetricsRegistry) (*cacheMetrics, error) {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: "tftgateway",
			Subsystem: "respcache",
			Name:      name,
			Help:      help,
		}
	}

	m := &cacheMetrics{
		hits:           prometheus.NewCounter(opts("hits_total", "Total number of response cache hits")),
		misses:         prometheus.NewCounter(opts("misses_total", "Total number of response cache misses")),
		sets:           prometheus.NewCounter(opts("sets_total", "Total number of response cache writes")),
		invalidations:  prometheus.NewCounter(opts("invalidations_total", "Total number of invalidation calls")),
		entriesRemoved: prometheus.NewCounter(opts("entries_removed_total", "Total number of entries removed by invalidation")),
	}

	registrations := map[string]prometheus.Counter{
		"hits":            m.hits,
		"misses":          m.misses,
		"sets":            m.sets,
		"invalidations":   m.invalidations,
		"entries_removed": m.entriesRemoved,
	}
	for name, counter := range registrations {
		if err := registry.RegisterCounter("respcache", name, counter); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *cacheMetrics) recordHit()  { m.hits.Inc() }
func (m *cacheMetrics) recordMiss() { m.misses.Inc() }
func (m *cacheMetrics) recordSet()  { m.sets.Inc() }

func (m *cacheMetrics) recordInvalidation(removed int) {
	m.invalidations.Inc()
	m.entriesRemoved.Add(float64(removed))
}
