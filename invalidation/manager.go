// Package invalidation translates domain events ("the champion dataset
// was re-imported") into response-cache tag invalidations. Mutation
// paths call the named operations here after their write succeeds;
// every call is recorded in a bounded audit history regardless of
// outcome.
//
// Operations are idempotent. Invalidating a tag nothing is cached
// under removes zero entries and is not an error.
package invalidation

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/metric"
)

// Dataset tags the gateway attaches to cached responses. Invalidation
// and tagging must agree on these names, so they live here.
const (
	TagChampionData = "champion-data"
	TagItemData     = "item-data"
	TagTraitData    = "trait-data"
	TagMatchData    = "match-data"
	TagSummonerData = "summoner-data"
	TagDeckData     = "deck-data"
)

// defaultHistorySize bounds the audit ring.
const defaultHistorySize = 100

// LocaleTag scopes a dataset tag to one locale, e.g.
// "champion-data:ko". Entries for localized responses carry both the
// base tag and the locale tag, so either granularity can be swept.
func LocaleTag(base, locale string) string {
	if locale == "" {
		return base
	}
	return base + ":" + locale
}

// Cache is the slice of the response cache the manager drives.
type Cache interface {
	InvalidateByTag(ctx context.Context, tag string) (int, error)
	InvalidateAll(ctx context.Context) (int, error)
}

// Manager exposes the named invalidation operations.
type Manager struct {
	cache   Cache
	history *eventRing
	logger  *slog.Logger
	metrics *managerMetrics
}

// Option configures a Manager.
type Option func(*managerConfig)

type managerConfig struct {
	logger      *slog.Logger
	historySize int
	metricsReg  *metric.MetricsRegistry
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHistorySize sets the audit ring capacity.
func WithHistorySize(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.historySize = n
		}
	}
}

// WithMetrics exposes invalidation activity as Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *managerConfig) {
		c.metricsReg = registry
	}
}

// NewManager creates a Manager over the given cache.
func NewManager(cache Cache, opts ...Option) (*Manager, error) {
	cfg := &managerConfig{
		logger:      slog.Default(),
		historySize: defaultHistorySize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &Manager{
		cache:   cache,
		history: newEventRing(cfg.historySize),
		logger:  cfg.logger.With("component", "invalidation"),
	}

	if cfg.metricsReg != nil {
		metrics, err := newManagerMetrics(cfg.metricsReg)
		if err != nil {
			return nil, apperrors.Wrap(err, "Manager", "NewManager", "metrics registration")
		}
		m.metrics = metrics
	}

	return m, nil
}

// InvalidateChampionData removes cached champion responses. An empty
// locale sweeps every locale; otherwise only the locale-scoped tag is
// touched.
func (m *Manager) InvalidateChampionData(ctx context.Context, locale, triggeredBy string) (int, error) {
	tag := TagChampionData
	if locale != "" {
		tag = LocaleTag(TagChampionData, locale)
	}
	return m.run(ctx, EventChampionData, triggeredBy, tag)
}

// InvalidateMatchData removes cached match responses.
func (m *Manager) InvalidateMatchData(ctx context.Context, triggeredBy string) (int, error) {
	return m.run(ctx, EventMatchData, triggeredBy, TagMatchData)
}

// InvalidateSummonerData removes cached summoner responses.
func (m *Manager) InvalidateSummonerData(ctx context.Context, triggeredBy string) (int, error) {
	return m.run(ctx, EventSummonerData, triggeredBy, TagSummonerData)
}

// InvalidateDeckData removes cached deck statistics.
func (m *Manager) InvalidateDeckData(ctx context.Context, triggeredBy string) (int, error) {
	return m.run(ctx, EventDeckData, triggeredBy, TagDeckData)
}

// RefreshStaticData is the composite sweep run after a game-data
// import: champions, items and traits together. A failing sub-sweep
// does not stop the others; the aggregate removed count and any errors
// are reported at the end.
func (m *Manager) RefreshStaticData(ctx context.Context, triggeredBy string) (int, error) {
	return m.run(ctx, EventStaticData, triggeredBy,
		TagChampionData, TagItemData, TagTraitData)
}

// InvalidateEverything sweeps the cache's registered top-level tags.
func (m *Manager) InvalidateEverything(ctx context.Context, triggeredBy string) (int, error) {
	removed, err := m.cache.InvalidateAll(ctx)
	m.record(EventFullFlush, triggeredBy, nil, removed, err)
	if err != nil {
		return removed, apperrors.Wrap(err, "Manager", "InvalidateEverything", "full sweep")
	}
	return removed, nil
}

// History returns a copy of the audit events, newest first.
func (m *Manager) History() []Event {
	return m.history.snapshot()
}

// run sweeps each tag in turn, tolerating per-tag failures, then
// records a single audit event covering the whole operation.
func (m *Manager) run(ctx context.Context, evType EventType, triggeredBy string, tags ...string) (int, error) {
	total := 0
	var errs []error

	for _, tag := range tags {
		removed, err := m.cache.InvalidateByTag(ctx, tag)
		total += removed
		if err != nil {
			m.logger.Warn("tag sweep failed",
				"type", string(evType), "tag", tag, "error", err)
			errs = append(errs, err)
		}
	}

	err := stderrors.Join(errs...)
	m.record(evType, triggeredBy, tags, total, err)

	m.logger.Info("invalidation completed",
		"type", string(evType), "triggered_by", triggeredBy,
		"tags", len(tags), "removed", total, "failed", len(errs))

	if err != nil {
		return total, apperrors.WrapTransient(err, "Manager", "run", "tag sweep")
	}
	return total, nil
}

func (m *Manager) record(evType EventType, triggeredBy string, tags []string, removed int, err error) {
	ev := Event{
		ID:          uuid.NewString(),
		Type:        evType,
		TriggeredBy: triggeredBy,
		Timestamp:   time.Now(),
		Tags:        tags,
		Removed:     removed,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	m.history.append(ev)

	if m.metrics != nil {
		m.metrics.recordEvent(evType, removed, m.history.size())
	}
}
