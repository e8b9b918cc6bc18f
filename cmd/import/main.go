// Command import loads games, odds and rating exports into the
// database. Every load is a replace-for-key write, so re-running an
// import is always safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/logging"
	"nbaml_v3/pipeline/internal/models"
	"nbaml_v3/pipeline/internal/repository"
	"nbaml_v3/pipeline/internal/teams"
)

func main() {
	kind := flag.String("kind", "", "what to import: games, odds, ratings, aliases")
	path := flag.String("file", "", "JSON file to import (defaults to stdin)")
	flag.Parse()

	cfg := config.MustLoad()
	logging.Setup(cfg)

	ctx := context.Background()

	db, err := repository.NewDatabaseFromDSN(ctx, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	in := os.Stdin
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open input file")
		}
		defer f.Close()
		in = f
	}

	switch *kind {
	case "games":
		err = importGames(ctx, db, in)
	case "odds":
		err = importOdds(ctx, db, in)
	case "ratings":
		err = importRatings(ctx, db, in)
	case "aliases":
		err = importAliases(ctx, db, in)
	default:
		log.Fatal().Str("kind", *kind).Msg("Unknown import kind (want games, odds, ratings or aliases)")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}
}

// loadResolver prefers the stored alias table so identity fixes apply
// without re-deploying.
func loadResolver(ctx context.Context, db *repository.Database) (*teams.Resolver, error) {
	aliases, err := db.Aliases.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return teams.NewDefaultResolver(), nil
	}
	return teams.NewResolver(aliases), nil
}

// importGames resolves team tokens, groups by season and replaces each
// season's games.
func importGames(ctx context.Context, db *repository.Database, in *os.File) error {
	var inputs []models.GameInput
	if err := json.NewDecoder(in).Decode(&inputs); err != nil {
		return fmt.Errorf("failed to decode games: %w", err)
	}

	resolver, err := loadResolver(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load resolver: %w", err)
	}

	bySeason := make(map[int][]*models.Game)
	for i := range inputs {
		gi := &inputs[i]
		game := gi.ToGame(resolver.Resolve(gi.HomeTeam), resolver.Resolve(gi.AwayTeam))
		bySeason[gi.Season] = append(bySeason[gi.Season], game)
	}

	for season, games := range bySeason {
		if err := db.Games.ReplaceSeason(ctx, season, games); err != nil {
			return err
		}
	}

	log.Info().Int("games", len(inputs)).Int("seasons", len(bySeason)).Msg("Games imported")
	return nil
}

// importOdds stores odds with their raw team tokens; resolution
// happens at join time.
func importOdds(ctx context.Context, db *repository.Database, in *os.File) error {
	var inputs []models.OddsInput
	if err := json.NewDecoder(in).Decode(&inputs); err != nil {
		return fmt.Errorf("failed to decode odds: %w", err)
	}

	bySeason := make(map[int][]*models.Odds)
	for i := range inputs {
		bySeason[inputs[i].Season] = append(bySeason[inputs[i].Season], inputs[i].ToOdds())
	}

	for season, odds := range bySeason {
		if err := db.Odds.ReplaceSeason(ctx, season, odds); err != nil {
			return err
		}
	}

	log.Info().Int("records", len(inputs)).Int("seasons", len(bySeason)).Msg("Odds imported")
	return nil
}

// importRatings backfills pre/post-game ELO onto stored games via one
// set-oriented update per batch.
func importRatings(ctx context.Context, db *repository.Database, in *os.File) error {
	var rows []models.RatingRow
	if err := json.NewDecoder(in).Decode(&rows); err != nil {
		return fmt.Errorf("failed to decode ratings: %w", err)
	}

	resolver, err := loadResolver(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load resolver: %w", err)
	}

	updates := make([]repository.RatingUpdate, len(rows))
	for i, r := range rows {
		updates[i] = repository.RatingUpdate{
			GameDate:      r.Date,
			HomeTeam:      resolver.Resolve(r.HomeTeam),
			AwayTeam:      resolver.Resolve(r.AwayTeam),
			EloHomeBefore: r.EloHomePre,
			EloHomeAfter:  r.EloHomePost,
			EloAwayBefore: r.EloAwayPre,
			EloAwayAfter:  r.EloAwayPost,
		}
	}

	updated, err := db.Games.UpdateRatings(ctx, updates)
	if err != nil {
		return err
	}

	log.Info().
		Int("rows", len(rows)).
		Int64("updated", updated).
		Int64("unmatched", int64(len(rows))-updated).
		Msg("Ratings imported")
	return nil
}

// importAliases replaces the stored team alias table.
func importAliases(ctx context.Context, db *repository.Database, in *os.File) error {
	var aliases map[string]string
	if err := json.NewDecoder(in).Decode(&aliases); err != nil {
		return fmt.Errorf("failed to decode aliases: %w", err)
	}
	if err := db.Aliases.ReplaceAll(ctx, aliases); err != nil {
		return err
	}
	log.Info().Int("aliases", len(aliases)).Msg("Alias table imported")
	return nil
}
