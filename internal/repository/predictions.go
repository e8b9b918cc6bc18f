package repository

import (
	"context"
	"fmt"
	"time"

	"nbaml_v3/pipeline/internal/metrics"
	"nbaml_v3/pipeline/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// PredictionRepository handles prediction database operations
type PredictionRepository struct {
	db *Database
}

// Replace stores a batch of predictions, superseding any prior
// prediction for the same (game, model family) pair in one
// transaction. Re-running a prediction pass never duplicates rows.
func (r *PredictionRepository) Replace(ctx context.Context, preds []*models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}
	started := time.Now()

	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid prediction for game %s: %w", p.GameID, err)
		}
	}

	gameIDs := make([]string, len(preds))
	families := make([]string, len(preds))
	for i, p := range preds {
		gameIDs[i] = p.GameID
		families[i] = p.ModelFamily
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	deleteQuery := `
		DELETE FROM predictions p
		USING unnest($1::text[], $2::text[]) AS t(game_id, model_family)
		WHERE p.game_id = t.game_id
		  AND p.model_family = t.model_family
	`
	if _, err := tx.Exec(ctx, deleteQuery, gameIDs, families); err != nil {
		metrics.RecordDBQuery("replace", "predictions", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to clear superseded predictions: %w", err)
	}

	rows := make([][]interface{}, len(preds))
	for i, p := range preds {
		rows[i] = []interface{}{
			p.GameID, p.ModelFamily, p.PredictedWinner,
			p.HomeWinProb, p.Confidence, p.PredictedAt,
		}
	}
	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"predictions"},
		[]string{"game_id", "model_family", "predicted_winner", "home_win_prob", "confidence", "predicted_at"},
		pgx.CopyFromRows(rows),
	); err != nil {
		metrics.RecordDBQuery("replace", "predictions", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to insert predictions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit predictions: %w", err)
	}

	metrics.RecordDBQuery("replace", "predictions", "success", time.Since(started).Seconds())
	log.Info().Int("predictions", len(preds)).Msg("Predictions stored")
	return nil
}

// GetByGameID retrieves all stored predictions for a game
func (r *PredictionRepository) GetByGameID(ctx context.Context, gameID string) ([]models.Prediction, error) {
	query := `
		SELECT id, game_id, model_family, predicted_winner,
		       home_win_prob, confidence, predicted_at, created_at
		FROM predictions
		WHERE game_id = $1
		ORDER BY model_family
	`

	rows, err := r.db.Pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions for game %s: %w", gameID, err)
	}
	return scanPredictions(rows)
}

// GetRecent retrieves the most recently made predictions
func (r *PredictionRepository) GetRecent(ctx context.Context, limit int) ([]models.Prediction, error) {
	query := `
		SELECT id, game_id, model_family, predicted_winner,
		       home_win_prob, confidence, predicted_at, created_at
		FROM predictions
		ORDER BY predicted_at DESC, game_id
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent predictions: %w", err)
	}
	return scanPredictions(rows)
}

func scanPredictions(rows pgx.Rows) ([]models.Prediction, error) {
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(
			&p.ID, &p.GameID, &p.ModelFamily, &p.PredictedWinner,
			&p.HomeWinProb, &p.Confidence, &p.PredictedAt, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	return preds, nil
}
