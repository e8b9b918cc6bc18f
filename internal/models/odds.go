package models

import (
	"database/sql"
	"strconv"
	"time"
)

// Odds represents one betting line record for a matchup.
// Multiple records may exist per game across books and fetch times;
// the join engine reduces them to one row per game.
type Odds struct {
	ID     int       `db:"id"`
	Season int       `db:"season"`
	Date   time.Time `db:"date"`

	// Raw team tokens as they appeared in the source (pre-resolution)
	HomeTeam string `db:"home_team"`
	AwayTeam string `db:"away_team"`

	Spread    sql.NullFloat64 `db:"spread"`
	OverUnder sql.NullFloat64 `db:"over_under"`

	// American moneyline prices. Sources store these as free-form
	// strings ("-200", "150", "PK"); parsing happens in the feature
	// pipeline and invalid values degrade to the neutral prior.
	MLHome sql.NullString `db:"ml_home"`
	MLAway sql.NullString `db:"ml_away"`

	Source    string    `db:"source"`
	CreatedAt time.Time `db:"created_at"`
}

// OddsInput is used for creating odds from import sources
type OddsInput struct {
	Season    int      `json:"season"`
	Date      string   `json:"date"`
	HomeTeam  string   `json:"home_team"`
	AwayTeam  string   `json:"away_team"`
	Spread    *float64 `json:"spread,omitempty"`
	OverUnder *float64 `json:"over_under,omitempty"`
	MLHome    string   `json:"ml_home,omitempty"`
	MLAway    string   `json:"ml_away,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// ToOdds converts OddsInput to the Odds model
func (oi *OddsInput) ToOdds() *Odds {
	odds := &Odds{
		Season:   oi.Season,
		HomeTeam: oi.HomeTeam,
		AwayTeam: oi.AwayTeam,
		Source:   oi.Source,
	}

	if d, err := time.Parse("2006-01-02", oi.Date); err == nil {
		odds.Date = d
	}

	if oi.Spread != nil {
		odds.Spread = sql.NullFloat64{Float64: *oi.Spread, Valid: true}
	}
	if oi.OverUnder != nil {
		odds.OverUnder = sql.NullFloat64{Float64: *oi.OverUnder, Valid: true}
	}
	if oi.MLHome != "" {
		odds.MLHome = sql.NullString{String: oi.MLHome, Valid: true}
	}
	if oi.MLAway != "" {
		odds.MLAway = sql.NullString{String: oi.MLAway, Valid: true}
	}

	return odds
}

// MoneylinePrice parses an American odds price string.
// The second return value is false for missing or unparsable prices.
func MoneylinePrice(s sql.NullString) (float64, bool) {
	if !s.Valid {
		return 0, false
	}
	p, err := strconv.ParseFloat(s.String, 64)
	if err != nil || p == 0 {
		return 0, false
	}
	return p, true
}
