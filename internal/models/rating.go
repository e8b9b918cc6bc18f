package models

import "time"

// RatingRow is one row of an ELO export used by the rating backfill.
// Team tokens are raw abbreviations from the source file.
type RatingRow struct {
	Season   int       `json:"season"`
	Date     time.Time `json:"date"`
	HomeTeam string    `json:"team1"`
	AwayTeam string    `json:"team2"`

	EloHomePre  float64 `json:"elo1_pre"`
	EloHomePost float64 `json:"elo1_post"`
	EloAwayPre  float64 `json:"elo2_pre"`
	EloAwayPost float64 `json:"elo2_post"`
}
