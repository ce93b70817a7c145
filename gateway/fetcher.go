package gateway

import "context"

// Champion is one unit from the game's static dataset.
type Champion struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Cost   int      `json:"cost"`
	Traits []string `json:"traits,omitempty"`
}

// Item is one combinable item from the static dataset.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Desc string `json:"desc,omitempty"`
}

// Trait is one origin/class synergy from the static dataset.
type Trait struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Style     string `json:"style,omitempty"`
	MinUnits  int    `json:"min_units,omitempty"`
	NumActive int    `json:"num_active,omitempty"`
}

// Participant is one player's board in a finished match.
type Participant struct {
	SummonerID  string   `json:"summoner_id"`
	Placement   int      `json:"placement"`
	ChampionIDs []string `json:"champion_ids"`
}

// Match is one finished game.
type Match struct {
	ID           string        `json:"id"`
	Patch        string        `json:"patch,omitempty"`
	Participants []Participant `json:"participants"`
}

// Summoner is one ranked player profile.
type Summoner struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Region       string `json:"region"`
	Tier         string `json:"tier,omitempty"`
	LeaguePoints int    `json:"league_points,omitempty"`
}

// DeckStat is one aggregated composition statistic.
type DeckStat struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PlayCount    int      `json:"play_count"`
	AvgPlacement float64  `json:"avg_placement"`
	WinRate      float64  `json:"win_rate"`
	CoreUnits    []string `json:"core_units,omitempty"`
}

// Fetcher is the narrow surface onto the backing stores (document
// database plus the rate-limited third-party game API). The ByIDs
// methods are the batch-fetch functions the per-request loaders wrap:
// they must return one result per input ID, in input order, with nil
// in the slot of an unknown ID.
type Fetcher interface {
	ChampionsByIDs(ctx context.Context, ids []string) ([]*Champion, error)
	MatchesByIDs(ctx context.Context, ids []string) ([]*Match, error)
	SummonersByIDs(ctx context.Context, ids []string) ([]*Summoner, error)

	// ChampionIDs lists the current set's champion IDs for a locale.
	ChampionIDs(ctx context.Context, language string) ([]string, error)

	// SummonerIDByName resolves a (region, name) pair to a summoner ID.
	SummonerIDByName(ctx context.Context, region, name string) (string, error)

	// RecentMatchIDs lists a summoner's latest match IDs, newest first.
	RecentMatchIDs(ctx context.Context, summonerID string, count int) ([]string, error)

	// Items and Traits are small whole-dataset reads; no batching.
	Items(ctx context.Context, language string) ([]*Item, error)
	Traits(ctx context.Context, language string) ([]*Trait, error)

	// DeckStats returns aggregated composition statistics, optionally
	// filtered to one ranked tier.
	DeckStats(ctx context.Context, tier string) ([]*DeckStat, error)
}
