package respcache

import "sync/atomic"

// Statistics tracks cache performance counters. Always collected;
// Prometheus export is layered on top via WithMetrics.
type Statistics struct {
	hits           atomic.Int64
	misses         atomic.Int64
	sets           atomic.Int64
	invalidations  atomic.Int64
	entriesRemoved atomic.Int64
}

// Hit records a cache hit.
func (s *Statistics) Hit() { s.hits.Add(1) }

// Miss records a cache miss.
func (s *Statistics) Miss() { s.misses.Add(1) }

// Set records a cache write.
func (s *Statistics) Set() { s.sets.Add(1) }

// Invalidation records one invalidation call and how many entries it
// removed.
func (s *Statistics) Invalidation(removed int) {
	s.invalidations.Add(1)
	s.entriesRemoved.Add(int64(removed))
}

// Hits returns the total number of cache hits.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the total number of cache misses.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the total number of cache writes.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Invalidations returns the total number of invalidation calls.
func (s *Statistics) Invalidations() int64 { return s.invalidations.Load() }

// EntriesRemoved returns the total number of entries removed by
// invalidation.
func (s *Statistics) EntriesRemoved() int64 { return s.entriesRemoved.Load() }

// HitRatio returns hits / (hits + misses), or 0 with no traffic.
func (s *Statistics) HitRatio() float64 {
	hits := s.Hits()
	total := hits + s.Misses()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
