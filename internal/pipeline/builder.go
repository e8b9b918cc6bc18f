// Package pipeline composes storage, identity resolution, the join
// engine and feature engineering into vector-building flows shared by
// the training CLI, the retrain scheduler and batch prediction.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/join"
	"nbaml_v3/pipeline/internal/metrics"
	"nbaml_v3/pipeline/internal/models"
	"nbaml_v3/pipeline/internal/repository"
	"nbaml_v3/pipeline/internal/teams"
)

// Builder produces feature vectors from stored games and odds.
type Builder struct {
	db       *repository.Database
	resolver *teams.Resolver
}

// NewBuilder creates a Builder over the given database and resolver.
func NewBuilder(db *repository.Database, resolver *teams.Resolver) *Builder {
	return &Builder{db: db, resolver: resolver}
}

// LoadResolver builds a team resolver from the stored alias table,
// falling back to the built-in table when none is stored yet.
func LoadResolver(ctx context.Context, db *repository.Database) (*teams.Resolver, error) {
	aliases, err := db.Aliases.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alias table: %w", err)
	}
	if len(aliases) == 0 {
		log.Info().Msg("No stored alias table, using built-in aliases")
		return teams.NewDefaultResolver(), nil
	}
	log.Info().Int("aliases", len(aliases)).Msg("Alias table loaded")
	return teams.NewResolver(aliases), nil
}

// TrainingVectors builds labeled vectors for a family from all final,
// rated games joined with the family's odds scope.
func (b *Builder) TrainingVectors(ctx context.Context, family features.Family) ([]features.Vector, error) {
	games, err := b.db.Games.GetForTraining(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training games: %w", err)
	}

	odds, err := b.db.Odds.GetBySeasons(ctx, family.Seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to load odds: %w", err)
	}

	rows := join.NewEngine(b.resolver).Join(games, odds, family.JoinMode)
	vectors := features.NewPipeline(family).Build(rows)

	metrics.VectorsBuilt.WithLabelValues(family.Name).Set(float64(len(vectors)))
	log.Info().
		Str("family", family.Name).
		Int("games", len(games)).
		Int("odds", len(odds)).
		Int("vectors", len(vectors)).
		Msg("Training vectors built")

	return vectors, nil
}

// UpcomingVectors builds unlabeled vectors for stored upcoming games.
// The join is always outer here: a missing line must not silence a
// prediction, it just falls back to the imputation defaults. Ratings
// come from each team's latest post-game ELO in the seasons involved.
func (b *Builder) UpcomingVectors(ctx context.Context, family features.Family, from time.Time, limit int) ([]features.Vector, []models.Game, error) {
	games, err := b.db.Games.GetUpcoming(ctx, from, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load upcoming games: %w", err)
	}
	if len(games) == 0 {
		return nil, nil, nil
	}

	seasons := distinctSeasons(games)
	odds, err := b.db.Odds.GetBySeasons(ctx, seasons)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load odds: %w", err)
	}

	elo := make(map[string]float64)
	for _, season := range seasons {
		seasonElo, err := b.db.Games.LatestEloBySeason(ctx, season)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load season %d ratings: %w", season, err)
		}
		// Seasons ascend, so a team active in several keeps its latest.
		for team, rating := range seasonElo {
			elo[team] = rating
		}
	}

	rows := join.NewEngine(b.resolver).Join(games, odds, join.ModeOuter)
	vectors := features.NewPipeline(family).BuildUpcoming(rows, elo)

	log.Info().
		Str("family", family.Name).
		Int("games", len(games)).
		Int("vectors", len(vectors)).
		Msg("Upcoming vectors built")

	return vectors, games, nil
}

func distinctSeasons(games []models.Game) []int {
	seen := make(map[int]bool)
	var seasons []int
	for _, g := range games {
		if !seen[g.Season] {
			seen[g.Season] = true
			seasons = append(seasons, g.Season)
		}
	}
	sort.Ints(seasons)
	return seasons
}
