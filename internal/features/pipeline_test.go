package features

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"nbaml_v3/pipeline/internal/join"
	"nbaml_v3/pipeline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature positions in the global family's order.
const (
	idxEloDiff = iota
	idxEloDiffNorm
	idxHomeForm
	idxAwayForm
	idxSpread
	idxOverUnder
	idxMLHomeProb
	idxMLAwayProb
	idxRestHome
	idxRestAway
	idxSeasonNorm
	idxHasOdds
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func ni(v int32) sql.NullInt32     { return sql.NullInt32{Int32: v, Valid: true} }
func nf(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
func ns(v string) sql.NullString   { return sql.NullString{String: v, Valid: true} }

func finalRow(id string, season int, day string, home, away string, homeScore, awayScore int32) join.Row {
	return join.Row{
		Game: models.Game{
			GameID: id, Season: season, GameDate: date(day),
			HomeTeam: home, AwayTeam: away,
			HomeScore: ni(homeScore), AwayScore: ni(awayScore),
			EloHomeBefore: nf(1500), EloAwayBefore: nf(1500),
		},
		HomeTeam: home, AwayTeam: away,
	}
}

func globalFamily(t *testing.T) Family {
	f, err := ByName(FamilyGlobal)
	require.NoError(t, err)
	return f
}

func TestAmericanOddsToProb(t *testing.T) {
	assert.InDelta(t, 0.40, AmericanOddsToProb(150), 1e-9, "+150 implies 100/250")
	assert.InDelta(t, 200.0/300.0, AmericanOddsToProb(-200), 1e-9, "-200 implies 200/300")
	assert.Equal(t, 0.5, AmericanOddsToProb(0))

	for _, price := range []float64{-100000, -550, -110, -100, 100, 105, 240, 100000} {
		p := AmericanOddsToProb(price)
		assert.Greater(t, p, 0.0, "price %f", price)
		assert.Less(t, p, 1.0, "price %f", price)
	}
}

func TestImpliedProb_MissingAndInvalid(t *testing.T) {
	assert.Equal(t, 0.5, ImpliedProb(sql.NullString{}))
	assert.Equal(t, 0.5, ImpliedProb(ns("PK")))
	assert.Equal(t, 0.5, ImpliedProb(ns("")))
	assert.InDelta(t, 0.40, ImpliedProb(ns("150")), 1e-9)
}

func TestBuild_MissingOddsDefaults(t *testing.T) {
	// Lakers/Celtics without matching odds: outer join leaves odds
	// fields null, the pipeline fills the documented defaults.
	p := NewPipeline(globalFamily(t))

	row := finalRow("g1", 2020, "2020-01-10", "los angeles lakers", "boston celtics", 100, 90)
	vecs := p.Build([]join.Row{row})
	require.Len(t, vecs, 1)

	v := vecs[0].Values
	require.Len(t, v, len(globalFamily(t).FeatureOrder()))
	assert.Equal(t, 0.0, v[idxSpread])
	assert.Equal(t, 220.0, v[idxOverUnder])
	assert.Equal(t, 0.5, v[idxMLHomeProb])
	assert.Equal(t, 0.5, v[idxMLAwayProb])
	assert.Equal(t, 0.0, v[idxHasOdds])
	assert.True(t, vecs[0].Labeled)
	assert.True(t, vecs[0].HomeWin)
}

func TestBuild_RollingFormDefaultAndWindow(t *testing.T) {
	p := NewPipeline(globalFamily(t))

	rows := []join.Row{
		finalRow("g1", 2020, "2020-01-01", "miami heat", "chicago bulls", 100, 90),
		finalRow("g2", 2020, "2020-01-03", "miami heat", "chicago bulls", 80, 95),
		finalRow("g3", 2020, "2020-01-05", "miami heat", "chicago bulls", 101, 99),
	}
	vecs := p.Build(rows)
	require.Len(t, vecs, 3)

	// No prior games: neutral default on both sides.
	assert.Equal(t, 0.5, vecs[0].Values[idxHomeForm])
	assert.Equal(t, 0.5, vecs[0].Values[idxAwayForm])

	// One prior home game (a win) for the Heat; Bulls lost their one
	// prior away game.
	assert.Equal(t, 1.0, vecs[1].Values[idxHomeForm])
	assert.Equal(t, 0.0, vecs[1].Values[idxAwayForm])

	// Two prior home games, one win.
	assert.Equal(t, 0.5, vecs[2].Values[idxHomeForm])
	// Bulls won game two away.
	assert.Equal(t, 0.5, vecs[2].Values[idxAwayForm])
}

func TestBuild_RollingFormNoLookahead(t *testing.T) {
	// Features at position i must not change when the input is
	// truncated after position i.
	p := NewPipeline(globalFamily(t))

	var rows []join.Row
	for i := 0; i < 20; i++ {
		day := date("2020-01-01").AddDate(0, 0, i)
		homeScore, awayScore := int32(100), int32(90)
		if i%3 == 0 {
			homeScore, awayScore = 90, 100
		}
		rows = append(rows, finalRow(
			fmt.Sprintf("g%02d", i), 2020, day.Format("2006-01-02"),
			"miami heat", "chicago bulls", homeScore, awayScore,
		))
	}

	full := p.Build(rows)
	for i := range rows {
		truncated := p.Build(rows[:i+1])
		assert.Equal(t, full[i].Values, truncated[i].Values,
			"vector %d depends on games after it", i)
	}
}

func TestBuild_EloFeatures(t *testing.T) {
	p := NewPipeline(globalFamily(t))

	row := finalRow("g1", 2020, "2020-01-10", "miami heat", "chicago bulls", 100, 90)
	row.Game.EloHomeBefore = nf(1650)
	row.Game.EloAwayBefore = nf(1500)

	vecs := p.Build([]join.Row{row})
	require.Len(t, vecs, 1)
	assert.Equal(t, 150.0, vecs[0].Values[idxEloDiff])
	assert.InDelta(t, 0.6875, vecs[0].Values[idxEloDiffNorm], 1e-9)
}

func TestBuild_RestDays(t *testing.T) {
	p := NewPipeline(globalFamily(t))

	rows := []join.Row{
		finalRow("g1", 2020, "2020-01-01", "miami heat", "chicago bulls", 100, 90),
		finalRow("g2", 2020, "2020-01-04", "miami heat", "orlando magic", 100, 90),
	}
	vecs := p.Build(rows)
	require.Len(t, vecs, 2)

	// First appearance: default.
	assert.Equal(t, 2.0, vecs[0].Values[idxRestHome])
	assert.Equal(t, 2.0, vecs[0].Values[idxRestAway])

	// Heat played three days earlier; Magic debut.
	assert.Equal(t, 3.0, vecs[1].Values[idxRestHome])
	assert.Equal(t, 2.0, vecs[1].Values[idxRestAway])
}

func TestBuild_NamedCarriesFullFeatureSet(t *testing.T) {
	recency, err := ByName(FamilyRecency)
	require.NoError(t, err)
	p := NewPipeline(recency)

	row := finalRow("g1", 2020, "2020-01-10", "miami heat", "chicago bulls", 100, 90)
	row.HasOdds = true
	row.Spread = nf(-4.5)
	row.OverUnder = nf(218.5)
	row.MLHome = ns("-180")
	row.MLAway = ns("150")

	vecs := p.Build([]join.Row{row})
	require.Len(t, vecs, 1)
	require.Len(t, vecs[0].Values, len(recency.FeatureOrder()))

	// The family's own order omits has_odds, but the named set keeps
	// it, so the same row can assemble against the global schema.
	named := vecs[0].Named
	assert.Equal(t, 1.0, named["has_odds"])
	assert.Equal(t, -4.5, named["spread_num"])

	global := globalFamily(t)
	got, err := VectorFrom(global.FeatureOrder(), named)
	require.NoError(t, err)
	require.Len(t, got, len(global.FeatureOrder()))
	assert.Equal(t, 1.0, got[idxHasOdds])
}

func TestSeasonNorm_PerFamily(t *testing.T) {
	global := globalFamily(t)
	recency, err := ByName(FamilyRecency)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, global.SeasonNorm(2025), 1e-9)
	assert.InDelta(t, 1.5, recency.SeasonNorm(2025), 1e-9, "out of range propagates unclamped")
	assert.InDelta(t, 0.0, recency.SeasonNorm(2019), 1e-9)
}

func TestFamily_SeasonScope(t *testing.T) {
	global := globalFamily(t)
	recency, err := ByName(FamilyRecency)
	require.NoError(t, err)

	assert.False(t, global.AllowsSeason(2017), "odds-less seasons excluded")
	assert.True(t, global.AllowsSeason(2015))
	assert.True(t, recency.AllowsSeason(2021))
	assert.False(t, recency.AllowsSeason(2015))
}

func TestFamily_VectorFromNamed(t *testing.T) {
	recency, err := ByName(FamilyRecency)
	require.NoError(t, err)

	named := map[string]float64{}
	for i, name := range recency.FeatureOrder() {
		named[name] = float64(i)
	}

	vec, err := recency.VectorFromNamed(named)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, vec)

	delete(named, "spread_num")
	_, err = recency.VectorFromNamed(named)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spread_num")
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("v9")
	assert.Error(t, err)
}
