package models

import (
	"fmt"
	"time"
)

// Prediction represents a model prediction for a game
type Prediction struct {
	ID     int    `db:"id"`
	GameID string `db:"game_id"`

	ModelFamily string `db:"model_family"`

	PredictedWinner string  `db:"predicted_winner"`
	HomeWinProb     float64 `db:"home_win_prob"`
	Confidence      float64 `db:"confidence"`

	PredictedAt time.Time `db:"predicted_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// Validate ensures prediction data is valid before insertion
func (p *Prediction) Validate() error {
	if p.GameID == "" {
		return fmt.Errorf("game_id is required")
	}
	if p.ModelFamily == "" {
		return fmt.Errorf("model_family is required")
	}
	if p.HomeWinProb < 0 || p.HomeWinProb > 1 {
		return fmt.Errorf("home_win_prob must be between 0 and 1, got %f", p.HomeWinProb)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %f", p.Confidence)
	}
	if p.PredictedAt.IsZero() {
		return fmt.Errorf("predicted_at is required")
	}
	return nil
}
