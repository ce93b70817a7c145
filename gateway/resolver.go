package gateway

import (
	"context"
	"fmt"

	apperrors "github.com/s0mar1/tftai.gg-sub000/errors"
	"github.com/s0mar1/tftai.gg-sub000/invalidation"
)

// defaultLanguage is assumed when a locale argument is absent.
const defaultLanguage = "en"

// maxRecentMatches bounds the summoner match-history expansion.
const maxRecentMatches = 20

// resolveFunc computes one top-level field. It returns the payload, the
// dataset tags the cached response should carry, and an error when the
// backing fetch failed (which, unlike cache failures, must propagate).
type resolveFunc func(ctx context.Context, ld *Loaders, args map[string]any) (any, []string, error)

// resolverSet binds the supported operations to the fetcher. The set is
// deliberately thin: it shapes arguments, drives the loaders and names
// the tags; response formatting belongs to the callers.
type resolverSet struct {
	fetcher Fetcher
	ops     map[string]resolveFunc
}

func newResolverSet(fetcher Fetcher) *resolverSet {
	rs := &resolverSet{fetcher: fetcher}
	rs.ops = map[string]resolveFunc{
		"champions": rs.champions,
		"champion":  rs.champion,
		"items":     rs.items,
		"traits":    rs.traits,
		"match":     rs.match,
		"summoner":  rs.summoner,
		"deckStats": rs.deckStats,
	}
	return rs
}

func (rs *resolverSet) lookup(op string) (resolveFunc, bool) {
	fn, ok := rs.ops[op]
	return fn, ok
}

func (rs *resolverSet) champions(ctx context.Context, ld *Loaders, args map[string]any) (any, []string, error) {
	language := stringArg(args, "language", defaultLanguage)

	ids, err := rs.fetcher.ChampionIDs(ctx, language)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "champions", "list champion ids")
	}

	champions, err := ld.Champions.LoadMany(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	tags := []string{
		invalidation.TagChampionData,
		invalidation.LocaleTag(invalidation.TagChampionData, language),
	}
	return champions, tags, nil
}

func (rs *resolverSet) champion(ctx context.Context, ld *Loaders, args map[string]any) (any, []string, error) {
	id := stringArg(args, "id", "")
	if id == "" {
		return nil, nil, apperrors.WrapInvalid(fmt.Errorf("missing id argument"),
			"resolverSet", "champion", "argument validation")
	}
	language := stringArg(args, "language", defaultLanguage)

	champion, err := ld.Champions.Load(ctx, id).Value(ctx)
	if err != nil {
		return nil, nil, err
	}

	tags := []string{
		invalidation.TagChampionData,
		invalidation.LocaleTag(invalidation.TagChampionData, language),
	}
	return champion, tags, nil
}

func (rs *resolverSet) items(ctx context.Context, _ *Loaders, args map[string]any) (any, []string, error) {
	language := stringArg(args, "language", defaultLanguage)

	items, err := rs.fetcher.Items(ctx, language)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "items", "fetch items")
	}

	tags := []string{
		invalidation.TagItemData,
		invalidation.LocaleTag(invalidation.TagItemData, language),
	}
	return items, tags, nil
}

func (rs *resolverSet) traits(ctx context.Context, _ *Loaders, args map[string]any) (any, []string, error) {
	language := stringArg(args, "language", defaultLanguage)

	traits, err := rs.fetcher.Traits(ctx, language)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "traits", "fetch traits")
	}

	tags := []string{
		invalidation.TagTraitData,
		invalidation.LocaleTag(invalidation.TagTraitData, language),
	}
	return traits, tags, nil
}

// match expands every participant's board through the champion loader:
// eight boards sharing units issue one deduplicated champion fetch.
func (rs *resolverSet) match(ctx context.Context, ld *Loaders, args map[string]any) (any, []string, error) {
	id := stringArg(args, "id", "")
	if id == "" {
		return nil, nil, apperrors.WrapInvalid(fmt.Errorf("missing id argument"),
			"resolverSet", "match", "argument validation")
	}

	m, err := ld.Matches.Load(ctx, id).Value(ctx)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, apperrors.WrapInvalid(fmt.Errorf("match %s not found", id),
			"resolverSet", "match", "lookup")
	}

	seen := make(map[string]struct{})
	var championIDs []string
	for _, p := range m.Participants {
		for _, cid := range p.ChampionIDs {
			if _, ok := seen[cid]; ok {
				continue
			}
			seen[cid] = struct{}{}
			championIDs = append(championIDs, cid)
		}
	}

	champions, err := ld.Champions.LoadMany(ctx, championIDs)
	if err != nil {
		return nil, nil, err
	}

	payload := map[string]any{
		"match":     m,
		"champions": champions,
	}
	tags := []string{invalidation.TagMatchData, invalidation.TagChampionData}
	return payload, tags, nil
}

func (rs *resolverSet) summoner(ctx context.Context, ld *Loaders, args map[string]any) (any, []string, error) {
	region := stringArg(args, "region", "")
	name := stringArg(args, "name", "")
	if region == "" || name == "" {
		return nil, nil, apperrors.WrapInvalid(fmt.Errorf("missing region or name argument"),
			"resolverSet", "summoner", "argument validation")
	}
	count := intArg(args, "matchCount", 5)
	if count > maxRecentMatches {
		count = maxRecentMatches
	}
	if count < 0 {
		count = 0
	}

	id, err := rs.fetcher.SummonerIDByName(ctx, region, name)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "summoner", "resolve name")
	}

	s, err := ld.Summoners.Load(ctx, id).Value(ctx)
	if err != nil {
		return nil, nil, err
	}

	matchIDs, err := rs.fetcher.RecentMatchIDs(ctx, id, count)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "summoner", "list recent matches")
	}

	matches, err := ld.Matches.LoadMany(ctx, matchIDs)
	if err != nil {
		return nil, nil, err
	}

	payload := map[string]any{
		"summoner": s,
		"matches":  matches,
	}
	tags := []string{invalidation.TagSummonerData, invalidation.TagMatchData}
	return payload, tags, nil
}

func (rs *resolverSet) deckStats(ctx context.Context, _ *Loaders, args map[string]any) (any, []string, error) {
	tier := stringArg(args, "tier", "")

	stats, err := rs.fetcher.DeckStats(ctx, tier)
	if err != nil {
		return nil, nil, apperrors.WrapTransient(err, "resolverSet", "deckStats", "fetch deck stats")
	}

	return stats, []string{invalidation.TagDeckData}, nil
}

func stringArg(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
