package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/gateway"
)

// dataset is the on-disk shape of the gateway's serving data: a JSON
// snapshot exported from the ingestion pipeline.
type dataset struct {
	Champions []*gateway.Champion `json:"champions"`
	Items     []*gateway.Item     `json:"items"`
	Traits    []*gateway.Trait    `json:"traits"`
	Matches   []*gateway.Match    `json:"matches"`
	Summoners []*gateway.Summoner `json:"summoners"`
	DeckStats []*gateway.DeckStat `json:"deck_stats"`

	// MatchesBySummoner maps summoner ID to match IDs, newest first.
	MatchesBySummoner map[string][]string `json:"matches_by_summoner"`
}

// fileFetcher serves the gateway from an in-process dataset snapshot.
// It stands in for the document-store and third-party API clients,
// which live in the ingestion service.
type fileFetcher struct {
	data      dataset
	champions map[string]*gateway.Champion
	matches   map[string]*gateway.Match
	summoners map[string]*gateway.Summoner
	names     map[string]string
}

func newFileFetcher(path string) (*fileFetcher, error) {
	f := &fileFetcher{
		champions: make(map[string]*gateway.Champion),
		matches:   make(map[string]*gateway.Match),
		summoners: make(map[string]*gateway.Summoner),
		names:     make(map[string]string),
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "fileFetcher", "newFileFetcher", "read dataset")
		}
		if err := json.Unmarshal(raw, &f.data); err != nil {
			return nil, errors.WrapInvalid(err, "fileFetcher", "newFileFetcher", "parse dataset")
		}
	}

	for _, c := range f.data.Champions {
		f.champions[c.ID] = c
	}
	for _, m := range f.data.Matches {
		f.matches[m.ID] = m
	}
	for _, s := range f.data.Summoners {
		f.summoners[s.ID] = s
		f.names[nameKey(s.Region, s.Name)] = s.ID
	}

	return f, nil
}

func nameKey(region, name string) string {
	return strings.ToLower(region) + "/" + strings.ToLower(name)
}

func (f *fileFetcher) ChampionsByIDs(_ context.Context, ids []string) ([]*gateway.Champion, error) {
	out := make([]*gateway.Champion, len(ids))
	for i, id := range ids {
		out[i] = f.champions[id]
	}
	return out, nil
}

func (f *fileFetcher) MatchesByIDs(_ context.Context, ids []string) ([]*gateway.Match, error) {
	out := make([]*gateway.Match, len(ids))
	for i, id := range ids {
		out[i] = f.matches[id]
	}
	return out, nil
}

func (f *fileFetcher) SummonersByIDs(_ context.Context, ids []string) ([]*gateway.Summoner, error) {
	out := make([]*gateway.Summoner, len(ids))
	for i, id := range ids {
		out[i] = f.summoners[id]
	}
	return out, nil
}

func (f *fileFetcher) ChampionIDs(context.Context, string) ([]string, error) {
	ids := make([]string, 0, len(f.data.Champions))
	for _, c := range f.data.Champions {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (f *fileFetcher) SummonerIDByName(_ context.Context, region, name string) (string, error) {
	id, ok := f.names[nameKey(region, name)]
	if !ok {
		return "", fmt.Errorf("summoner %s/%s not found", region, name)
	}
	return id, nil
}

func (f *fileFetcher) RecentMatchIDs(_ context.Context, summonerID string, count int) ([]string, error) {
	ids := f.data.MatchesBySummoner[summonerID]
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids, nil
}

func (f *fileFetcher) Items(context.Context, string) ([]*gateway.Item, error) {
	return f.data.Items, nil
}

func (f *fileFetcher) Traits(context.Context, string) ([]*gateway.Trait, error) {
	return f.data.Traits, nil
}

func (f *fileFetcher) DeckStats(_ context.Context, _ string) ([]*gateway.DeckStat, error) {
	// The snapshot has no tier dimension; serve the full set.
	return f.data.DeckStats, nil
}
