// Package join aligns game records with betting odds by season and
// canonical team identity, producing one row per game.
package join

import (
	"database/sql"
	"sort"

	"nbaml_v3/pipeline/internal/models"
	"nbaml_v3/pipeline/internal/teams"

	"github.com/rs/zerolog/log"
)

// Mode selects how games without matching odds are handled.
type Mode int

const (
	// ModeOuter keeps every game; odds fields stay null when no match
	// is found.
	ModeOuter Mode = iota
	// ModeInner drops games without matching odds. Used when training
	// strictly odds-aware model families.
	ModeInner
)

func (m Mode) String() string {
	if m == ModeInner {
		return "inner"
	}
	return "outer"
}

// Row is one game with all odds context available as of game date.
type Row struct {
	Game models.Game

	// Canonical identities used as the join key
	HomeTeam string
	AwayTeam string

	Spread    sql.NullFloat64
	OverUnder sql.NullFloat64
	MLHome    sql.NullString
	MLAway    sql.NullString

	HasOdds bool
}

// Engine joins games with odds. Both sides' team tokens are resolved
// to canonical identities before key comparison; comparing raw tokens
// directly is the bug class this package exists to prevent.
type Engine struct {
	resolver *teams.Resolver
}

// NewEngine creates a join engine backed by the given resolver.
func NewEngine(resolver *teams.Resolver) *Engine {
	return &Engine{resolver: resolver}
}

type key struct {
	season int
	home   string
	away   string
}

// aggregated is the single reduced odds row per join key.
type aggregated struct {
	spread    sql.NullFloat64
	overUnder sql.NullFloat64
	mlHome    sql.NullString
	mlAway    sql.NullString
}

// Join produces one Row per game. Odds are first reduced to one value
// per market per key (latest by date, stable secondary sort), then
// attached to games by season + canonical (home, away) pair.
func (e *Engine) Join(games []models.Game, odds []models.Odds, mode Mode) []Row {
	reduced := e.aggregate(odds)

	rows := make([]Row, 0, len(games))
	matched := 0
	for _, g := range games {
		home := e.resolver.Resolve(g.HomeTeam)
		away := e.resolver.Resolve(g.AwayTeam)

		agg, ok := reduced[key{season: g.Season, home: home, away: away}]
		if !ok && mode == ModeInner {
			continue
		}
		if ok {
			matched++
		}

		row := Row{
			Game:     g,
			HomeTeam: home,
			AwayTeam: away,
			HasOdds:  ok,
		}
		if ok {
			row.Spread = agg.spread
			row.OverUnder = agg.overUnder
			row.MLHome = agg.mlHome
			row.MLAway = agg.mlAway
		}
		rows = append(rows, row)
	}

	log.Debug().
		Str("mode", mode.String()).
		Int("games", len(games)).
		Int("matched", matched).
		Int("rows", len(rows)).
		Msg("Joined games with odds")

	return rows
}

// aggregate reduces all odds records to one row per (season, home,
// away) key. Per market the value from the latest record carrying that
// market wins; ties break on a stable secondary sort so the result is
// deterministic regardless of input order.
func (e *Engine) aggregate(odds []models.Odds) map[key]aggregated {
	grouped := make(map[key][]models.Odds)
	for _, o := range odds {
		k := key{
			season: o.Season,
			home:   e.resolver.Resolve(o.HomeTeam),
			away:   e.resolver.Resolve(o.AwayTeam),
		}
		grouped[k] = append(grouped[k], o)
	}

	reduced := make(map[key]aggregated, len(grouped))
	for k, group := range grouped {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Date.Equal(group[j].Date) {
				return group[i].Date.Before(group[j].Date)
			}
			if group[i].Source != group[j].Source {
				return group[i].Source < group[j].Source
			}
			return group[i].ID < group[j].ID
		})

		var agg aggregated
		for _, o := range group {
			if o.Spread.Valid {
				agg.spread = o.Spread
			}
			if o.OverUnder.Valid {
				agg.overUnder = o.OverUnder
			}
			if o.MLHome.Valid {
				agg.mlHome = o.MLHome
			}
			if o.MLAway.Valid {
				agg.mlAway = o.MLAway
			}
		}
		reduced[k] = agg
	}

	return reduced
}
