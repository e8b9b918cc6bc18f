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

// GameRepository handles game database operations
type GameRepository struct {
	db *Database
}

// ReplaceSeason atomically replaces all games for a season with the
// given set. Re-imports are idempotent: the same input always leaves
// the same rows.
func (r *GameRepository) ReplaceSeason(ctx context.Context, season int, games []*models.Game) error {
	started := time.Now()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM games WHERE season = $1`, season); err != nil {
		metrics.RecordDBQuery("replace", "games", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to clear season %d games: %w", season, err)
	}

	rows := make([][]interface{}, len(games))
	for i, g := range games {
		rows[i] = []interface{}{
			g.GameID, g.Season, g.GameDate, g.HomeTeam, g.AwayTeam,
			g.HomeScore, g.AwayScore,
			g.EloHomeBefore, g.EloHomeAfter, g.EloAwayBefore, g.EloAwayAfter,
		}
	}

	copied, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"games"},
		[]string{
			"game_id", "season", "game_date", "home_team", "away_team",
			"home_score", "away_score",
			"elo_home_before", "elo_home_after", "elo_away_before", "elo_away_after",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		metrics.RecordDBQuery("replace", "games", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to insert season %d games: %w", season, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit season %d games: %w", season, err)
	}

	metrics.RecordDBQuery("replace", "games", "success", time.Since(started).Seconds())
	log.Info().
		Int("season", season).
		Int64("games", copied).
		Msg("Season games replaced")

	return nil
}

const gameColumns = `
	id, game_id, season, game_date, home_team, away_team,
	home_score, away_score,
	elo_home_before, elo_home_after, elo_away_before, elo_away_after,
	created_at, updated_at
`

func scanGames(rows pgx.Rows) ([]models.Game, error) {
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(
			&g.ID, &g.GameID, &g.Season, &g.GameDate, &g.HomeTeam, &g.AwayTeam,
			&g.HomeScore, &g.AwayScore,
			&g.EloHomeBefore, &g.EloHomeAfter, &g.EloAwayBefore, &g.EloAwayAfter,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}
	return games, nil
}

// GetForTraining retrieves final games with pre-game ratings, ordered
// chronologically. Games outside rating coverage are excluded here so
// the feature pipeline never sees rating-less history.
func (r *GameRepository) GetForTraining(ctx context.Context) ([]models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE home_score IS NOT NULL
		  AND away_score IS NOT NULL
		  AND elo_home_before IS NOT NULL
		  AND elo_away_before IS NOT NULL
		ORDER BY game_date, game_id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query training games: %w", err)
	}
	return scanGames(rows)
}

// GetBySeason retrieves all games for a season ordered chronologically
func (r *GameRepository) GetBySeason(ctx context.Context, season int) ([]models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE season = $1
		ORDER BY game_date, game_id
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query season %d games: %w", season, err)
	}
	return scanGames(rows)
}

// GetUpcoming retrieves unplayed games from a date forward
func (r *GameRepository) GetUpcoming(ctx context.Context, from time.Time, limit int) ([]models.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE home_score IS NULL
		  AND away_score IS NULL
		  AND game_date >= $1
		ORDER BY game_date, game_id
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, from, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming games: %w", err)
	}
	return scanGames(rows)
}

// RatingUpdate carries one game's rating backfill values. Teams are
// canonical identities; matching is by (date, home, away).
type RatingUpdate struct {
	GameDate time.Time
	HomeTeam string
	AwayTeam string

	EloHomeBefore float64
	EloHomeAfter  float64
	EloAwayBefore float64
	EloAwayAfter  float64
}

// UpdateRatings applies a rating backfill as one set-oriented UPDATE
// over the whole batch. Returns the number of games updated; rows that
// match no stored game are counted by the difference.
func (r *GameRepository) UpdateRatings(ctx context.Context, updates []RatingUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	started := time.Now()

	dates := make([]time.Time, len(updates))
	homes := make([]string, len(updates))
	aways := make([]string, len(updates))
	hb := make([]float64, len(updates))
	ha := make([]float64, len(updates))
	ab := make([]float64, len(updates))
	aa := make([]float64, len(updates))
	for i, u := range updates {
		dates[i] = u.GameDate
		homes[i] = u.HomeTeam
		aways[i] = u.AwayTeam
		hb[i] = u.EloHomeBefore
		ha[i] = u.EloHomeAfter
		ab[i] = u.EloAwayBefore
		aa[i] = u.EloAwayAfter
	}

	query := `
		UPDATE games g SET
			elo_home_before = u.elo_home_before,
			elo_home_after  = u.elo_home_after,
			elo_away_before = u.elo_away_before,
			elo_away_after  = u.elo_away_after,
			updated_at      = NOW()
		FROM (
			SELECT * FROM unnest(
				$1::date[], $2::text[], $3::text[],
				$4::float8[], $5::float8[], $6::float8[], $7::float8[]
			) AS t(game_date, home_team, away_team,
			       elo_home_before, elo_home_after, elo_away_before, elo_away_after)
		) u
		WHERE g.game_date = u.game_date
		  AND g.home_team = u.home_team
		  AND g.away_team = u.away_team
	`

	tag, err := r.db.Pool.Exec(ctx, query, dates, homes, aways, hb, ha, ab, aa)
	if err != nil {
		metrics.RecordDBQuery("update_ratings", "games", "error", time.Since(started).Seconds())
		return 0, fmt.Errorf("failed to update ratings: %w", err)
	}

	metrics.RecordDBQuery("update_ratings", "games", "success", time.Since(started).Seconds())
	log.Info().
		Int("batch", len(updates)).
		Int64("updated", tag.RowsAffected()).
		Msg("Rating backfill applied")

	return tag.RowsAffected(), nil
}

// LatestEloBySeason returns each team's most recent post-game rating
// within a season, for scoring upcoming games.
func (r *GameRepository) LatestEloBySeason(ctx context.Context, season int) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (team) team, elo
		FROM (
			SELECT home_team AS team, game_date, elo_home_after AS elo
			FROM games
			WHERE season = $1 AND elo_home_after IS NOT NULL
			UNION ALL
			SELECT away_team, game_date, elo_away_after
			FROM games
			WHERE season = $1 AND elo_away_after IS NOT NULL
		) t
		ORDER BY team, game_date DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query season %d ratings: %w", season, err)
	}
	defer rows.Close()

	ratings := make(map[string]float64)
	for rows.Next() {
		var team string
		var elo float64
		if err := rows.Scan(&team, &elo); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		ratings[team] = elo
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ratings: %w", err)
	}
	return ratings, nil
}

// Count returns the total number of stored games
func (r *GameRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	metrics.GamesStored.Set(float64(count))
	return count, nil
}
