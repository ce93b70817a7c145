package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0mar1/tftai.gg-sub000/complexity"
	apperrors "github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/invalidation"
	"github.com/s0mar1/tftai.gg-sub000/respcache"
	"github.com/s0mar1/tftai.gg-sub000/store"
)

// stubFetcher serves a small fixed dataset and records every batched
// call so tests can assert on coalescing.
type stubFetcher struct {
	mu            sync.Mutex
	championCalls [][]string
	matchCalls    [][]string
	summonerCalls [][]string

	champions map[string]*Champion
	matches   map[string]*Match
	summoners map[string]*Summoner
	recent    map[string][]string
	names     map[string]string

	fetchErr error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		champions: map[string]*Champion{
			"jinx":  {ID: "jinx", Name: "Jinx", Cost: 4, Traits: []string{"Rebel"}},
			"vi":    {ID: "vi", Name: "Vi", Cost: 3, Traits: []string{"Enforcer"}},
			"urgot": {ID: "urgot", Name: "Urgot", Cost: 5},
		},
		matches: map[string]*Match{
			"m1": {ID: "m1", Patch: "14.12", Participants: []Participant{
				{SummonerID: "s1", Placement: 1, ChampionIDs: []string{"jinx", "vi"}},
				{SummonerID: "s2", Placement: 2, ChampionIDs: []string{"jinx", "urgot"}},
			}},
			"m2": {ID: "m2", Participants: []Participant{
				{SummonerID: "s1", Placement: 4, ChampionIDs: []string{"vi"}},
			}},
		},
		summoners: map[string]*Summoner{
			"s1": {ID: "s1", Name: "alice", Region: "kr", Tier: "CHALLENGER"},
		},
		recent: map[string][]string{"s1": {"m1", "m2"}},
		names:  map[string]string{"kr/alice": "s1"},
	}
}

func (s *stubFetcher) ChampionsByIDs(_ context.Context, ids []string) ([]*Champion, error) {
	s.mu.Lock()
	s.championCalls = append(s.championCalls, ids)
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*Champion, len(ids))
	for i, id := range ids {
		out[i] = s.champions[id]
	}
	return out, nil
}

func (s *stubFetcher) MatchesByIDs(_ context.Context, ids []string) ([]*Match, error) {
	s.mu.Lock()
	s.matchCalls = append(s.matchCalls, ids)
	s.mu.Unlock()

	out := make([]*Match, len(ids))
	for i, id := range ids {
		out[i] = s.matches[id]
	}
	return out, nil
}

func (s *stubFetcher) SummonersByIDs(_ context.Context, ids []string) ([]*Summoner, error) {
	s.mu.Lock()
	s.summonerCalls = append(s.summonerCalls, ids)
	s.mu.Unlock()

	out := make([]*Summoner, len(ids))
	for i, id := range ids {
		out[i] = s.summoners[id]
	}
	return out, nil
}

func (s *stubFetcher) ChampionIDs(context.Context, string) ([]string, error) {
	return []string{"jinx", "vi", "urgot"}, nil
}

func (s *stubFetcher) SummonerIDByName(_ context.Context, region, name string) (string, error) {
	id, ok := s.names[region+"/"+name]
	if !ok {
		return "", fmt.Errorf("summoner %s/%s not found", region, name)
	}
	return id, nil
}

func (s *stubFetcher) RecentMatchIDs(_ context.Context, summonerID string, count int) ([]string, error) {
	ids := s.recent[summonerID]
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (s *stubFetcher) Items(context.Context, string) ([]*Item, error) {
	return []*Item{{ID: "bf", Name: "B.F. Sword"}}, nil
}

func (s *stubFetcher) Traits(context.Context, string) ([]*Trait, error) {
	return []*Trait{{ID: "rebel", Name: "Rebel", MinUnits: 3}}, nil
}

func (s *stubFetcher) DeckStats(context.Context, string) ([]*DeckStat, error) {
	return []*DeckStat{{ID: "d1", Name: "Rebel Jinx", PlayCount: 120, AvgPlacement: 3.8}}, nil
}

func (s *stubFetcher) championCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.championCalls)
}

type testHarness struct {
	orch    *Orchestrator
	cache   *respcache.Cache
	fetcher *stubFetcher
	events  *[]Event
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	cache, err := respcache.NewCache(mem, respcache.DefaultPolicy(),
		respcache.WithTopLevelTags(invalidation.TagChampionData, invalidation.TagMatchData))
	require.NoError(t, err)

	table := complexity.NewWeightTable(1, 10, map[string]int{
		"Query.champions": 5,
		"Query.match":     3,
		"Query.summoner":  2,
	})
	analyzer := complexity.NewAnalyzer(table, 1001, nil)

	cfg := Config{
		MaxComplexity:      1000,
		MaxDepth:           10,
		PrincipalScopedOps: []string{"summoner"},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	var events []Event
	fetcher := newStubFetcher()
	orch, err := NewOrchestrator(cfg, analyzer, cache, fetcher, nil,
		WithTelemetry(func(ev Event) { events = append(events, ev) }))
	require.NoError(t, err)

	return &testHarness{orch: orch, cache: cache, fetcher: fetcher, events: &events}
}

func TestExecuteMissThenHitThenInvalidated(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := Request{Query: `{ champions(language: "en") }`}

	// First call resolves and caches with the complexity-scaled TTL.
	resp, err := h.orch.Execute(ctx, req)
	require.NoError(t, err)
	require.Contains(t, resp.Data, "champions")
	assert.Equal(t, 1, h.fetcher.championCallCount())

	entry, found, err := h.cache.Get(ctx, "champions", map[string]any{"language": "en"}, "")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, entry.Complexity)
	assert.Equal(t, 150, entry.TTLSeconds)

	// Second call is served from the cache: no new fetch, hit counted.
	resp, err = h.orch.Execute(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "champions")
	assert.Equal(t, 1, h.fetcher.championCallCount())

	events := *h.events
	require.Len(t, events, 2)
	assert.False(t, events[0].Hit)
	assert.True(t, events[1].Hit)
	assert.Equal(t, "champions", events[1].Operation)
	assert.Equal(t, 5, events[1].Complexity)

	// A dataset-updated event sweeps the tag; the next call misses.
	mgr, err := invalidation.NewManager(h.cache)
	require.NoError(t, err)
	removed, err := mgr.InvalidateChampionData(ctx, "", "dataset-import")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = h.orch.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, h.fetcher.championCallCount())
}

func TestExecuteMatchCoalescesChampionFetches(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.orch.Execute(context.Background(),
		Request{Query: `{ match(id: "m1") { match champions } }`})
	require.NoError(t, err)
	require.Contains(t, resp.Data, "match")

	// Two boards share jinx: one deduplicated champion batch.
	require.Equal(t, 1, h.fetcher.championCallCount())
	assert.ElementsMatch(t, []string{"jinx", "vi", "urgot"}, h.fetcher.championCalls[0])
}

func TestExecuteRejectsOverComplexity(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxComplexity = 4 })

	_, err := h.orch.Execute(context.Background(),
		Request{Query: `{ champions(language: "en") }`})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryTooComplex)
	assert.Contains(t, err.Error(), "score 5")
	assert.Zero(t, h.fetcher.championCallCount(), "rejected queries never reach the backend")
}

func TestExecuteRejectsOverDepth(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxDepth = 1 })

	_, err := h.orch.Execute(context.Background(),
		Request{Query: `{ champions { name } }`})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrQueryTooDeep)
}

func TestExecuteMalformedQuery(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Execute(context.Background(), Request{Query: `{ champions(`})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedQuery)
	assert.True(t, apperrors.IsInvalid(err))
}

func TestExecuteUnknownOperation(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Execute(context.Background(), Request{Query: `{ augments }`})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMalformedQuery)
	assert.Contains(t, err.Error(), "augments")
}

func TestExecuteMutationRejected(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.orch.Execute(context.Background(),
		Request{Query: `mutation { champions }`})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalid(err))
}

func TestExecutePrincipalScoped(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	query := `{ summoner(region: "kr", name: "alice", matchCount: 1) }`

	_, err := h.orch.Execute(ctx, Request{Query: query, Principal: "caller-a"})
	require.NoError(t, err)

	// A different principal must not see caller-a's cached response.
	_, err = h.orch.Execute(ctx, Request{Query: query, Principal: "caller-b"})
	require.NoError(t, err)
	assert.Len(t, h.fetcher.summonerCalls, 2)

	// Same principal hits.
	_, err = h.orch.Execute(ctx, Request{Query: query, Principal: "caller-a"})
	require.NoError(t, err)
	assert.Len(t, h.fetcher.summonerCalls, 2)
}

func TestExecuteMultiFieldSkipsCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	req := Request{Query: `{ items traits }`}

	resp, err := h.orch.Execute(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "items")
	assert.Contains(t, resp.Data, "traits")

	// Neither field was cached.
	_, found, err := h.cache.Get(ctx, "items", nil, "")
	require.NoError(t, err)
	assert.False(t, found)

	events := *h.events
	require.Len(t, events, 1)
	assert.False(t, events[0].Hit)
}

func TestExecuteAlias(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.orch.Execute(context.Background(),
		Request{Query: `{ units: champions(language: "ko") }`})
	require.NoError(t, err)
	assert.Contains(t, resp.Data, "units")
}

func TestExecuteCacheOutageAbsorbed(t *testing.T) {
	table := complexity.NewWeightTable(1, 10, nil)
	analyzer := complexity.NewAnalyzer(table, 1001, nil)

	cache, err := respcache.NewCache(deadKV{}, respcache.DefaultPolicy())
	require.NoError(t, err)

	fetcher := newStubFetcher()
	orch, err := NewOrchestrator(Config{}, analyzer, cache, fetcher, nil)
	require.NoError(t, err)

	// Every request works, every request is a miss.
	for i := 0; i < 2; i++ {
		resp, execErr := orch.Execute(context.Background(),
			Request{Query: `{ champions }`})
		require.NoError(t, execErr)
		assert.Contains(t, resp.Data, "champions")
	}
	assert.Equal(t, 2, fetcher.championCallCount())
}

func TestExecuteBackendFetchFailurePropagates(t *testing.T) {
	h := newHarness(t, nil)
	h.fetcher.fetchErr = stderrors.New("riot api 503")

	_, err := h.orch.Execute(context.Background(), Request{Query: `{ champions }`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "riot api 503")
}

func TestExecuteRespectsContext(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Batch.Wait = 50 * time.Millisecond })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.Execute(ctx, Request{Query: `{ champions }`})
	require.Error(t, err)
}

// deadKV fails every operation, simulating a cache backend outage.
type deadKV struct{}

func (deadKV) Get(context.Context, string) ([]byte, error) {
	return nil, stderrors.New("kv down")
}

func (deadKV) Set(context.Context, string, []byte, time.Duration) error {
	return stderrors.New("kv down")
}

func (deadKV) Delete(context.Context, string) error {
	return stderrors.New("kv down")
}

func (deadKV) Update(context.Context, string, time.Duration, func([]byte) ([]byte, error)) error {
	return stderrors.New("kv down")
}
