package features

import (
	"sort"
	"time"

	"nbaml_v3/pipeline/internal/join"

	"github.com/rs/zerolog/log"
)

// Vector is one model-ready feature row. Values follow the family's
// FeatureOrder exactly.
type Vector struct {
	GameID   string
	Season   int
	Date     time.Time
	HomeTeam string
	AwayTeam string

	// Label. Labeled is false for upcoming games.
	HomeWin bool
	Labeled bool

	Values []float64

	// Named holds every derived feature by name, including ones
	// outside the family's own order, so a row can be rescored
	// against any artifact schema.
	Named map[string]float64
}

// Pipeline derives feature vectors for one model family.
type Pipeline struct {
	family Family
}

// NewPipeline creates a pipeline bound to a family's schema and
// normalization parameters.
func NewPipeline(family Family) *Pipeline {
	return &Pipeline{family: family}
}

// Family returns the pipeline's family configuration.
func (p *Pipeline) Family() Family {
	return p.family
}

// formTracker accumulates per-team win/loss history in one role
// (team-as-home or team-as-away) in chronological order.
type formTracker map[string][]float64

// trailingMean returns the mean of up to the last FormWindow outcomes
// recorded strictly before the current game. The current game's
// outcome is appended only after its features are computed, so the
// window can never include it.
func (t formTracker) trailingMean(team string) float64 {
	history := t[team]
	if len(history) == 0 {
		return DefaultForm
	}
	start := len(history) - FormWindow
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, w := range history[start:] {
		sum += w
	}
	return sum / float64(len(history)-start)
}

func (t formTracker) record(team string, win bool) {
	v := 0.0
	if win {
		v = 1.0
	}
	t[team] = append(t[team], v)
}

// Build converts joined rows into feature vectors. Rows are processed
// in date-ascending order; rolling state is only ever advanced after a
// row's features have been computed, which rules out lookahead by
// construction. Seasons outside the family scope are skipped.
func (p *Pipeline) Build(rows []join.Row) []Vector {
	sorted := make([]join.Row, 0, len(rows))
	for _, r := range rows {
		if p.family.AllowsSeason(r.Game.Season) {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Game.GameDate.Equal(sorted[j].Game.GameDate) {
			return sorted[i].Game.GameDate.Before(sorted[j].Game.GameDate)
		}
		return sorted[i].Game.GameID < sorted[j].Game.GameID
	})

	homeForm := make(formTracker)
	awayForm := make(formTracker)
	lastPlayed := make(map[string]time.Time)

	vectors := make([]Vector, 0, len(sorted))
	for _, row := range sorted {
		eloHome, eloAway := DefaultElo, DefaultElo
		if row.Game.EloHomeBefore.Valid {
			eloHome = row.Game.EloHomeBefore.Float64
		}
		if row.Game.EloAwayBefore.Valid {
			eloAway = row.Game.EloAwayBefore.Float64
		}

		v, named := p.assemble(rowInputs{
			eloHome:   eloHome,
			eloAway:   eloAway,
			homeForm:  homeForm.trailingMean(row.HomeTeam),
			awayForm:  awayForm.trailingMean(row.AwayTeam),
			restHome:  restDays(lastPlayed, row.HomeTeam, row.Game.GameDate),
			restAway:  restDays(lastPlayed, row.AwayTeam, row.Game.GameDate),
			season:    row.Game.Season,
			joinedRow: row,
		})

		vec := Vector{
			GameID:   row.Game.GameID,
			Season:   row.Game.Season,
			Date:     row.Game.GameDate,
			HomeTeam: row.HomeTeam,
			AwayTeam: row.AwayTeam,
			Values:   v,
			Named:    named,
		}
		if row.Game.IsFinal() {
			vec.HomeWin = row.Game.HomeWin()
			vec.Labeled = true
		}
		vectors = append(vectors, vec)

		// Advance rolling state only after features are built.
		if row.Game.IsFinal() {
			homeForm.record(row.HomeTeam, row.Game.HomeWin())
			awayForm.record(row.AwayTeam, !row.Game.HomeWin())
		}
		lastPlayed[row.HomeTeam] = row.Game.GameDate
		lastPlayed[row.AwayTeam] = row.Game.GameDate
	}

	log.Debug().
		Str("family", p.family.Name).
		Int("rows", len(rows)).
		Int("vectors", len(vectors)).
		Msg("Feature vectors built")

	return vectors
}

// BuildUpcoming derives vectors for unplayed games. Rolling form has
// no history at serving time and stays at the neutral default; ratings
// come from the supplied per-team snapshot (latest known ELO).
func (p *Pipeline) BuildUpcoming(rows []join.Row, elo map[string]float64) []Vector {
	vectors := make([]Vector, 0, len(rows))
	for _, row := range rows {
		v, named := p.assemble(rowInputs{
			eloHome:   lookupElo(elo, row.HomeTeam),
			eloAway:   lookupElo(elo, row.AwayTeam),
			homeForm:  DefaultForm,
			awayForm:  DefaultForm,
			restHome:  DefaultRestDays,
			restAway:  DefaultRestDays,
			season:    row.Game.Season,
			joinedRow: row,
		})
		vectors = append(vectors, Vector{
			GameID:   row.Game.GameID,
			Season:   row.Game.Season,
			Date:     row.Game.GameDate,
			HomeTeam: row.HomeTeam,
			AwayTeam: row.AwayTeam,
			Values:   v,
			Named:    named,
		})
	}
	return vectors
}

type rowInputs struct {
	eloHome, eloAway   float64
	homeForm, awayForm float64
	restHome, restAway float64
	season             int
	joinedRow          join.Row
}

// assemble derives the full named feature set, then projects the
// family's order out of it. The named map always carries every
// feature (has_odds included) even when the family's own order omits
// it, so a row built for one family can still score against another
// family's artifact.
func (p *Pipeline) assemble(in rowInputs) ([]float64, map[string]float64) {
	row := in.joinedRow

	eloDiff := in.eloHome - in.eloAway

	spread := DefaultSpread
	if row.Spread.Valid {
		spread = row.Spread.Float64
	}
	total := DefaultTotal
	if row.OverUnder.Valid {
		total = row.OverUnder.Float64
	}
	hasOdds := 0.0
	if row.HasOdds {
		hasOdds = 1.0
	}

	named := map[string]float64{
		"elo_diff":         eloDiff,
		"elo_diff_norm":    (eloDiff + 400) / 800,
		"home_last10_wins": in.homeForm,
		"away_last10_wins": in.awayForm,
		"spread_num":       spread,
		"over_under":       total,
		"ml_home_prob":     ImpliedProb(row.MLHome),
		"ml_away_prob":     ImpliedProb(row.MLAway),
		"rest_days_home":   in.restHome,
		"rest_days_away":   in.restAway,
		"season_norm":      p.family.SeasonNorm(in.season),
		"has_odds":         hasOdds,
	}

	order := p.family.FeatureOrder()
	values := make([]float64, len(order))
	for i, name := range order {
		values[i] = named[name]
	}
	return values, named
}

func restDays(lastPlayed map[string]time.Time, team string, gameDate time.Time) float64 {
	prev, ok := lastPlayed[team]
	if !ok {
		return DefaultRestDays
	}
	return gameDate.Sub(prev).Hours() / 24
}

func lookupElo(elo map[string]float64, team string) float64 {
	if v, ok := elo[team]; ok {
		return v
	}
	return DefaultElo
}
