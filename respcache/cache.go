// Package respcache caches whole query responses across requests with
// content-derived keys and tag-based invalidation. Entries carry a TTL
// scaled by query complexity; every entry is indexed under its tags so
// a domain event ("champion dataset changed") can remove all affected
// responses without enumerating argument variants.
//
// Failure doctrine: the cache is an optimization, never a dependency.
// Backend failures during Get degrade to misses, failed writes are
// reported but must not fail the request that computed the result, and
// callers are expected to log and continue.
package respcache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/metric"
	"github.com/s0mar1/tftai.gg-sub000/store"
)

// tagKeyPrefix namespaces tag index entries in the backing store.
const tagKeyPrefix = "tag:"

// SetOptions carries per-write metadata.
type SetOptions struct {
	Complexity  int           // analyzer score, drives the TTL
	Tags        []string      // explicit tags; the operation name is always added
	TTLOverride time.Duration // > 0 bypasses the complexity-derived TTL
	Principal   string        // non-empty scopes the key to one caller
}

// Cache is the response cache over a pluggable KV store. Safe for
// concurrent use; the tag index relies on the store's atomic Update.
type Cache struct {
	kv      store.KV
	policy  Policy
	topTags []string
	logger  *slog.Logger
	stats   *Statistics
	metrics *cacheMetrics
}

// Option configures a Cache.
type Option func(*cacheConfig)

type cacheConfig struct {
	logger     *slog.Logger
	metricsReg *metric.MetricsRegistry
	topTags    []string
}

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *cacheConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics exposes the cache counters as Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *cacheConfig) {
		c.metricsReg = registry
	}
}

// WithTopLevelTags registers the bounded tag set InvalidateAll sweeps.
func WithTopLevelTags(tags ...string) Option {
	return func(c *cacheConfig) {
		c.topTags = append(c.topTags, tags...)
	}
}

// NewCache creates a response cache over kv. Returns an error only when
// metrics registration fails.
func NewCache(kv store.KV, policy Policy, opts ...Option) (*Cache, error) {
	cfg := &cacheConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Cache{
		kv:      kv,
		policy:  policy.normalize(),
		topTags: cfg.topTags,
		logger:  cfg.logger.With("component", "respcache"),
		stats:   &Statistics{},
	}

	if cfg.metricsReg != nil {
		metrics, err := newCacheMetrics(cfg.metricsReg)
		if err != nil {
			return nil, apperrors.WrapTransient(err, "Cache", "NewCache", "metrics registration")
		}
		c.metrics = metrics
	}

	return c, nil
}

// Stats returns the cache's counters.
func (c *Cache) Stats() *Statistics {
	return c.stats
}

// Policy returns the cache's TTL policy.
func (c *Cache) Policy() Policy {
	return c.policy
}

// Get looks up the cached response for (operation, args, principal).
// Returns (entry, true, nil) on a hit. A clean miss is (nil, false,
// nil); a backend failure is (nil, false, err) and should be treated as
// a miss by the caller. The error exists so the caller can decide to
// log it, not to fail the request.
func (c *Cache) Get(ctx context.Context, operation string, args map[string]any, principal string) (*Entry, bool, error) {
	key := DeriveKey(operation, args, principal)

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		c.miss()
		if store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, apperrors.WrapTransient(
			fmt.Errorf("%w: %w", apperrors.ErrCacheBackend, err),
			"Cache", "Get", "backend read")
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt entry: drop it and report a miss.
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		c.deleteQuietly(ctx, key)
		c.miss()
		return nil, false, nil
	}

	now := time.Now()
	if entry.Expired(now) {
		c.deleteQuietly(ctx, key)
		c.miss()
		return nil, false, nil
	}

	// Hit-count increment is best effort: losing it never loses data.
	entry.HitCount++
	if updated, merr := json.Marshal(&entry); merr == nil {
		remaining := time.Until(entry.ExpiresAt())
		if serr := c.kv.Set(ctx, key, updated, remaining); serr != nil {
			c.logger.Debug("hit-count write-back failed", "key", key, "error", serr)
		}
	}

	c.hit()
	return &entry, true, nil
}

// Set stores a response under its derived key and indexes it under the
// merged tag list (explicit tags plus the operation name, so a whole
// operation can be invalidated without knowing its argument variants).
// A returned error means the tag indexing or the write failed; nothing
// is served from the cache in that case, so the caller should log and
// continue, since the computed result is still valid.
func (c *Cache) Set(ctx context.Context, operation string, args map[string]any, payload []byte, opts SetOptions) error {
	key := DeriveKey(operation, args, opts.Principal)

	ttl := opts.TTLOverride
	if ttl <= 0 {
		ttl = c.policy.TTLFor(opts.Complexity)
	}

	tags := mergeTags(opts.Tags, operation)

	entry := Entry{
		Key:        key,
		Payload:    payload,
		CreatedAt:  time.Now(),
		Complexity: opts.Complexity,
		Tags:       tags,
		TTLSeconds: int(ttl.Seconds()),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return apperrors.WrapInvalid(err, "Cache", "Set", "entry encoding")
	}

	// Tag index first, entry second. A tag pointing at a key that never
	// lands only wastes an invalidation read, but an entry missing from
	// its tag's set would dodge invalidation and serve stale for its
	// full TTL. So an indexing failure aborts the write entirely.
	var tagErrs []error
	for _, tag := range tags {
		if err := c.addKeyToTag(ctx, tag, key); err != nil {
			c.logger.Warn("tag index update failed", "tag", tag, "key", key, "error", err)
			tagErrs = append(tagErrs, err)
		}
	}
	if len(tagErrs) > 0 {
		return apperrors.WrapTransient(
			fmt.Errorf("%w: %w", apperrors.ErrCacheBackend, stderrors.Join(tagErrs...)),
			"Cache", "Set", "tag indexing")
	}

	if err := c.kv.Set(ctx, key, data, ttl); err != nil {
		return apperrors.WrapTransient(
			fmt.Errorf("%w: %w", apperrors.ErrCacheBackend, err),
			"Cache", "Set", "backend write")
	}

	c.set()
	return nil
}

// InvalidateByTag removes every entry indexed under tag plus the tag's
// own index entry, returning how many entries were removed. Idempotent:
// an unknown or already-swept tag returns (0, nil).
func (c *Cache) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tagKey := tagKeyPrefix + tag

	raw, err := c.kv.Get(ctx, tagKey)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, nil
		}
		return 0, apperrors.WrapTransient(
			fmt.Errorf("%w: %w", apperrors.ErrInvalidation, err),
			"Cache", "InvalidateByTag", "tag index read")
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		// Unreadable index: discard it so the tag heals on next Set.
		c.logger.Warn("dropping undecodable tag index", "tag", tag, "error", err)
		c.deleteQuietly(ctx, tagKey)
		return 0, nil
	}

	removed := 0
	var errs []error
	for _, key := range keys {
		switch err := c.kv.Delete(ctx, key); {
		case err == nil:
			removed++
		case store.IsNotFound(err):
			// Entry already expired; the dangling reference is the
			// harmless direction of the invariant.
		default:
			c.logger.Warn("entry delete failed during invalidation",
				"tag", tag, "key", key, "error", err)
			errs = append(errs, err)
		}
	}

	if err := c.kv.Delete(ctx, tagKey); err != nil && !store.IsNotFound(err) {
		errs = append(errs, err)
	}

	c.invalidation(removed)
	c.logger.Info("invalidated tag", "tag", tag, "removed", removed, "indexed", len(keys))

	if len(errs) > 0 {
		return removed, apperrors.WrapTransient(
			fmt.Errorf("%w: %w", apperrors.ErrInvalidation, stderrors.Join(errs...)),
			"Cache", "InvalidateByTag", "entry removal")
	}
	return removed, nil
}

// InvalidateAll sweeps the registered top-level tags. This is a named
// operation over a known, bounded tag set, not a wildcard key scan.
func (c *Cache) InvalidateAll(ctx context.Context) (int, error) {
	total := 0
	var errs []error

	for _, tag := range c.topTags {
		removed, err := c.InvalidateByTag(ctx, tag)
		total += removed
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return total, apperrors.Wrap(stderrors.Join(errs...), "Cache", "InvalidateAll", "tag sweep")
	}
	return total, nil
}

// addKeyToTag appends key to the tag's key set via atomic
// read-modify-write, so a concurrent invalidation of the same tag never
// loses the append.
func (c *Cache) addKeyToTag(ctx context.Context, tag, key string) error {
	tagKey := tagKeyPrefix + tag

	return c.kv.Update(ctx, tagKey, c.policy.TagTTL, func(current []byte) ([]byte, error) {
		var keys []string
		if current != nil {
			if err := json.Unmarshal(current, &keys); err != nil {
				// Corrupt index: rebuild from this key.
				keys = nil
			}
		}
		for _, existing := range keys {
			if existing == key {
				return current, nil
			}
		}
		return json.Marshal(append(keys, key))
	})
}

func (c *Cache) deleteQuietly(ctx context.Context, key string) {
	if err := c.kv.Delete(ctx, key); err != nil && !store.IsNotFound(err) {
		c.logger.Debug("best-effort delete failed", "key", key, "error", err)
	}
}

func (c *Cache) hit() {
	c.stats.Hit()
	if c.metrics != nil {
		c.metrics.recordHit()
	}
}

func (c *Cache) miss() {
	c.stats.Miss()
	if c.metrics != nil {
		c.metrics.recordMiss()
	}
}

func (c *Cache) set() {
	c.stats.Set()
	if c.metrics != nil {
		c.metrics.recordSet()
	}
}

func (c *Cache) invalidation(removed int) {
	c.stats.Invalidation(removed)
	if c.metrics != nil {
		c.metrics.recordInvalidation(removed)
	}
}

// mergeTags deduplicates explicit tags and folds in the implicit
// operation tag.
func mergeTags(tags []string, operation string) []string {
	seen := make(map[string]bool, len(tags)+1)
	merged := make([]string, 0, len(tags)+1)
	for _, tag := range append([]string{operation}, tags...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	return merged
}
