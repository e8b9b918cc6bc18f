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

// OddsRepository handles betting line database operations
type OddsRepository struct {
	db *Database
}

// ReplaceSeason atomically replaces all odds records for a season.
// Odds keep their raw team tokens; resolution happens at join time, so
// a later alias fix never requires a re-import.
func (r *OddsRepository) ReplaceSeason(ctx context.Context, season int, odds []*models.Odds) error {
	started := time.Now()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM odds WHERE season = $1`, season); err != nil {
		metrics.RecordDBQuery("replace", "odds", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to clear season %d odds: %w", season, err)
	}

	rows := make([][]interface{}, len(odds))
	for i, o := range odds {
		rows[i] = []interface{}{
			o.Season, o.Date, o.HomeTeam, o.AwayTeam,
			o.Spread, o.OverUnder, o.MLHome, o.MLAway, o.Source,
		}
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"odds"},
		[]string{
			"season", "date", "home_team", "away_team",
			"spread", "over_under", "ml_home", "ml_away", "source",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		metrics.RecordDBQuery("replace", "odds", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to insert season %d odds: %w", season, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit season %d odds: %w", season, err)
	}

	metrics.RecordDBQuery("replace", "odds", "success", time.Since(started).Seconds())
	log.Info().
		Int("season", season).
		Int64("records", copied).
		Msg("Season odds replaced")

	return nil
}

// GetBySeasons retrieves odds for the given seasons in insertion
// order. A nil season list retrieves everything.
func (r *OddsRepository) GetBySeasons(ctx context.Context, seasons []int) ([]models.Odds, error) {
	query := `
		SELECT id, season, date, home_team, away_team,
		       spread, over_under, ml_home, ml_away, source, created_at
		FROM odds
	`
	args := []interface{}{}
	if seasons != nil {
		query += ` WHERE season = ANY($1)`
		args = append(args, seasons)
	}
	query += ` ORDER BY season, date, id`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query odds: %w", err)
	}
	defer rows.Close()

	var out []models.Odds
	for rows.Next() {
		var o models.Odds
		if err := rows.Scan(
			&o.ID, &o.Season, &o.Date, &o.HomeTeam, &o.AwayTeam,
			&o.Spread, &o.OverUnder, &o.MLHome, &o.MLAway, &o.Source, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan odds: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read odds: %w", err)
	}

	log.Debug().Int("records", len(out)).Msg("Odds loaded")
	return out, nil
}

// Count returns the total number of stored odds records
func (r *OddsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM odds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count odds: %w", err)
	}
	metrics.OddsStored.Set(float64(count))
	return count, nil
}
