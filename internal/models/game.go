package models

import (
	"database/sql"
	"time"
)

// Game represents an NBA game result
type Game struct {
	ID       int       `db:"id"`
	GameID   string    `db:"game_id"`
	Season   int       `db:"season"`
	GameDate time.Time `db:"game_date"`

	// Canonical team identities (resolved before storage)
	HomeTeam string `db:"home_team"`
	AwayTeam string `db:"away_team"`

	// Final scores (null until the game is played)
	HomeScore sql.NullInt32 `db:"home_score"`
	AwayScore sql.NullInt32 `db:"away_score"`

	// Pre/post-game ELO ratings, filled by the rating backfill.
	// Coverage is partial by season.
	EloHomeBefore sql.NullFloat64 `db:"elo_home_before"`
	EloHomeAfter  sql.NullFloat64 `db:"elo_home_after"`
	EloAwayBefore sql.NullFloat64 `db:"elo_away_before"`
	EloAwayAfter  sql.NullFloat64 `db:"elo_away_after"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GameInput is used for creating/updating games from import sources
type GameInput struct {
	GameID    string   `json:"game_id"`
	Season    int      `json:"season"`
	Date      string   `json:"date"` // ISO 8601 date
	HomeTeam  string   `json:"home_team"`
	AwayTeam  string   `json:"away_team"`
	HomeScore *int     `json:"home_score,omitempty"`
	AwayScore *int     `json:"away_score,omitempty"`
	EloHome   *float64 `json:"elo_home_before,omitempty"`
	EloAway   *float64 `json:"elo_away_before,omitempty"`
}

// ToGame converts GameInput to the Game model.
// Team tokens should already be resolved to canonical identities.
func (gi *GameInput) ToGame(homeCanonical, awayCanonical string) *Game {
	game := &Game{
		GameID:   gi.GameID,
		Season:   gi.Season,
		HomeTeam: homeCanonical,
		AwayTeam: awayCanonical,
	}

	if d, err := time.Parse("2006-01-02", gi.Date); err == nil {
		game.GameDate = d
	}

	if gi.HomeScore != nil {
		game.HomeScore = sql.NullInt32{Int32: int32(*gi.HomeScore), Valid: true}
	}
	if gi.AwayScore != nil {
		game.AwayScore = sql.NullInt32{Int32: int32(*gi.AwayScore), Valid: true}
	}
	if gi.EloHome != nil {
		game.EloHomeBefore = sql.NullFloat64{Float64: *gi.EloHome, Valid: true}
	}
	if gi.EloAway != nil {
		game.EloAwayBefore = sql.NullFloat64{Float64: *gi.EloAway, Valid: true}
	}

	return game
}

// IsFinal returns true once both final scores are recorded
func (g *Game) IsFinal() bool {
	return g.HomeScore.Valid && g.AwayScore.Valid
}

// HomeWin reports whether the home side won. Only meaningful for final games.
func (g *Game) HomeWin() bool {
	return g.IsFinal() && g.HomeScore.Int32 > g.AwayScore.Int32
}

// HasRatings returns true when both pre-game ratings are present
func (g *Game) HasRatings() bool {
	return g.EloHomeBefore.Valid && g.EloAwayBefore.Valid
}
