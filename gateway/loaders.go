package gateway

import (
	"github.com/s0mar1/tftai.gg-sub000/batch"
)

// Loaders bundles the per-entity batch loaders for one request. A fresh
// set is built for every incoming query and discarded with it; loaders
// coalesce duplicate fetches within the request but never cache across
// requests, and sharing a set between two callers would let one
// caller's pending fetch observe the other's rows.
type Loaders struct {
	Champions *batch.Loader[string, *Champion]
	Matches   *batch.Loader[string, *Match]
	Summoners *batch.Loader[string, *Summoner]
}

// NewLoaders builds a request-scoped loader set over the fetcher.
func NewLoaders(fetcher Fetcher, opts batch.Options) *Loaders {
	return &Loaders{
		Champions: batch.NewLoader(fetcher.ChampionsByIDs, opts),
		Matches:   batch.NewLoader(fetcher.MatchesByIDs, opts),
		Summoners: batch.NewLoader(fetcher.SummonersByIDs, opts),
	}
}
