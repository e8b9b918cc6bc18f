package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"nbaml_v3/pipeline/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// AliasRepository persists the team alias table so resolution can be
// corrected without a code deploy.
type AliasRepository struct {
	db *Database
}

// ReplaceAll atomically replaces the stored alias table
func (r *AliasRepository) ReplaceAll(ctx context.Context, aliases map[string]string) error {
	started := time.Now()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM team_aliases`); err != nil {
		metrics.RecordDBQuery("replace", "team_aliases", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to clear team aliases: %w", err)
	}

	// Deterministic insert order keeps repeated imports byte-identical.
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]interface{}, len(keys))
	for i, k := range keys {
		rows[i] = []interface{}{k, aliases[k]}
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"team_aliases"},
		[]string{"alias", "canonical"},
		pgx.CopyFromRows(rows),
	); err != nil {
		metrics.RecordDBQuery("replace", "team_aliases", "error", time.Since(started).Seconds())
		return fmt.Errorf("failed to insert team aliases: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit team aliases: %w", err)
	}

	metrics.RecordDBQuery("replace", "team_aliases", "success", time.Since(started).Seconds())
	log.Info().Int("aliases", len(keys)).Msg("Team alias table replaced")
	return nil
}

// GetAll retrieves the stored alias table
func (r *AliasRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT alias, canonical FROM team_aliases`)
	if err != nil {
		return nil, fmt.Errorf("failed to query team aliases: %w", err)
	}
	defer rows.Close()

	aliases := make(map[string]string)
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan team alias: %w", err)
		}
		aliases[alias] = canonical
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read team aliases: %w", err)
	}
	return aliases, nil
}
