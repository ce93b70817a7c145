package respcache

import (
	"encoding/json"
	"time"
)

// Entry is one cached query response. Entries are owned exclusively by
// the Cache: created by Set, hit-counted by Get, destroyed on expiry or
// invalidation.
type Entry struct {
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	Complexity int             `json:"complexity"`
	Tags       []string        `json:"tags"`
	HitCount   int             `json:"hit_count"`
	TTLSeconds int             `json:"ttl_seconds"`
}

// ExpiresAt returns the entry's expiry deadline.
func (e *Entry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(time.Duration(e.TTLSeconds) * time.Second)
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// Policy holds the TTL policy constants. The shape is the invariant
// (TTL monotone non-decreasing in complexity, upper-bounded); the
// constants are tunable.
type Policy struct {
	BaseTTL       time.Duration // TTL at complexity 10
	MaxTTL        time.Duration // hard staleness bound
	TagTTL        time.Duration // tag index entries outlive their members
	CapMultiplier float64       // bound on the complexity scaling factor
}

// DefaultPolicy returns the production TTL policy.
func DefaultPolicy() Policy {
	return Policy{
		BaseTTL:       300 * time.Second,
		MaxTTL:        3600 * time.Second,
		TagTTL:        2 * time.Hour,
		CapMultiplier: 6,
	}
}

// normalize fills zero fields with defaults.
func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.BaseTTL <= 0 {
		p.BaseTTL = def.BaseTTL
	}
	if p.MaxTTL <= 0 {
		p.MaxTTL = def.MaxTTL
	}
	if p.TagTTL <= 0 {
		p.TagTTL = def.TagTTL
	}
	if p.CapMultiplier <= 0 {
		p.CapMultiplier = def.CapMultiplier
	}
	return p
}

// TTLFor derives an entry TTL from its complexity score: expensive
// results are worth caching longer, capped to bound staleness.
//
//	ttl = min(BaseTTL * min(complexity/10, CapMultiplier), MaxTTL)
func (p Policy) TTLFor(complexity int) time.Duration {
	if complexity < 1 {
		complexity = 1
	}

	mult := float64(complexity) / 10
	if mult > p.CapMultiplier {
		mult = p.CapMultiplier
	}

	ttl := time.Duration(float64(p.BaseTTL) * mult)
	if ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
