package join

import (
	"database/sql"
	"testing"
	"time"

	"nbaml_v3/pipeline/internal/models"
	"nbaml_v3/pipeline/internal/teams"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func ns(v string) sql.NullString   { return sql.NullString{String: v, Valid: true} }

func testGames() []models.Game {
	return []models.Game{
		{GameID: "g1", Season: 2020, GameDate: date("2020-01-10"), HomeTeam: "Los Angeles Lakers", AwayTeam: "Boston Celtics"},
		{GameID: "g2", Season: 2020, GameDate: date("2020-01-12"), HomeTeam: "Miami Heat", AwayTeam: "Chicago Bulls"},
	}
}

func TestJoin_OuterKeepsGamesWithoutOdds(t *testing.T) {
	engine := NewEngine(teams.NewDefaultResolver())

	odds := []models.Odds{
		{Season: 2020, Date: date("2020-01-09"), HomeTeam: "miami heat", AwayTeam: "chicago bulls",
			Spread: nf(-3.5), OverUnder: nf(210.5), MLHome: ns("-150"), MLAway: ns("130")},
	}

	rows := engine.Join(testGames(), odds, ModeOuter)
	require.Len(t, rows, 2, "outer join must never drop a game row")

	lakers := rows[0]
	assert.Equal(t, "g1", lakers.Game.GameID)
	assert.False(t, lakers.HasOdds)
	assert.False(t, lakers.Spread.Valid)
	assert.False(t, lakers.OverUnder.Valid)
	assert.False(t, lakers.MLHome.Valid)

	heat := rows[1]
	assert.True(t, heat.HasOdds)
	assert.Equal(t, -3.5, heat.Spread.Float64)
	assert.Equal(t, "-150", heat.MLHome.String)
}

func TestJoin_InnerDropsGamesWithoutOdds(t *testing.T) {
	engine := NewEngine(teams.NewDefaultResolver())

	odds := []models.Odds{
		{Season: 2020, Date: date("2020-01-09"), HomeTeam: "miami heat", AwayTeam: "chicago bulls", Spread: nf(-3.5)},
	}

	rows := engine.Join(testGames(), odds, ModeInner)
	require.Len(t, rows, 1, "inner join must exclude games lacking odds")
	assert.Equal(t, "g2", rows[0].Game.GameID)
	assert.True(t, rows[0].HasOdds)
}

func TestJoin_ResolvesTokensOnBothSides(t *testing.T) {
	engine := NewEngine(teams.NewDefaultResolver())

	// Game uses abbreviations, odds use full names. The join must
	// still match through canonical identities.
	games := []models.Game{
		{GameID: "g1", Season: 2015, GameDate: date("2015-03-01"), HomeTeam: "LAL", AwayTeam: "BOS"},
	}
	odds := []models.Odds{
		{Season: 2015, Date: date("2015-02-28"), HomeTeam: "Los Angeles Lakers", AwayTeam: "Boston Celtics", Spread: nf(2.0)},
	}

	rows := engine.Join(games, odds, ModeOuter)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].HasOdds)
	assert.Equal(t, "los angeles lakers", rows[0].HomeTeam)
	assert.Equal(t, "boston celtics", rows[0].AwayTeam)
}

func TestJoin_AggregationLatestPerMarket(t *testing.T) {
	engine := NewEngine(teams.NewDefaultResolver())

	games := []models.Game{
		{GameID: "g1", Season: 2020, GameDate: date("2020-01-10"), HomeTeam: "MIA", AwayTeam: "CHI"},
	}
	odds := []models.Odds{
		// Opening line
		{ID: 1, Season: 2020, Date: date("2020-01-08"), HomeTeam: "MIA", AwayTeam: "CHI",
			Spread: nf(-2.5), OverUnder: nf(208), MLHome: ns("-130")},
		// Closing spread moves; total absent here so the earlier total survives
		{ID: 2, Season: 2020, Date: date("2020-01-09"), HomeTeam: "MIA", AwayTeam: "CHI",
			Spread: nf(-3.5)},
	}

	rows := engine.Join(games, odds, ModeOuter)
	require.Len(t, rows, 1)
	assert.Equal(t, -3.5, rows[0].Spread.Float64, "latest spread wins")
	assert.Equal(t, 208.0, rows[0].OverUnder.Float64, "total carried from the last record that had one")
	assert.Equal(t, "-130", rows[0].MLHome.String)
}

func TestJoin_AggregationDeterministicTiebreak(t *testing.T) {
	engine := NewEngine(teams.NewDefaultResolver())

	games := []models.Game{
		{GameID: "g1", Season: 2020, GameDate: date("2020-01-10"), HomeTeam: "MIA", AwayTeam: "CHI"},
	}

	// Same date, different sources. Sorted by (date, source, id), the
	// later-sorting record wins. Run with both input orders.
	a := models.Odds{ID: 1, Season: 2020, Date: date("2020-01-09"), HomeTeam: "MIA", AwayTeam: "CHI", Source: "alpha", Spread: nf(-2.0)}
	b := models.Odds{ID: 2, Season: 2020, Date: date("2020-01-09"), HomeTeam: "MIA", AwayTeam: "CHI", Source: "beta", Spread: nf(-4.0)}

	first := engine.Join(games, []models.Odds{a, b}, ModeOuter)
	second := engine.Join(games, []models.Odds{b, a}, ModeOuter)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, -4.0, first[0].Spread.Float64)
	assert.Equal(t, first[0].Spread.Float64, second[0].Spread.Float64, "pick must not depend on input order")
}
