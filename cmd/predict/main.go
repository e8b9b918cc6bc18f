package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/logging"
	"nbaml_v3/pipeline/internal/models"
	"nbaml_v3/pipeline/internal/pipeline"
	"nbaml_v3/pipeline/internal/repository"
)

func main() {
	familyFlag := flag.String("family", features.FamilyGlobal, "model family to predict with")
	limitFlag := flag.Int("limit", 100, "maximum upcoming games to score")
	dryRun := flag.Bool("dry-run", false, "print predictions without storing them")
	flag.Parse()

	cfg := config.MustLoad()
	logging.Setup(cfg)

	family, err := features.ByName(*familyFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown model family")
	}

	ctx := context.Background()

	db, err := repository.NewDatabaseFromDSN(ctx, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	store, err := artifact.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open artifact store")
	}

	svc := inference.New(store, cfg.DefaultFamily)
	if err := svc.Reload(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load model artifacts - train a model first")
	}

	resolver, err := pipeline.LoadResolver(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load team resolver")
	}
	builder := pipeline.NewBuilder(db, resolver)

	vectors, _, err := builder.UpcomingVectors(ctx, family, time.Now().UTC(), *limitFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build upcoming vectors")
	}
	if len(vectors) == 0 {
		fmt.Println("No upcoming games to score.")
		return
	}

	// Score by name against whichever artifact serves the family, so a
	// family answered by the fallback model still predicts.
	rows := make([]map[string]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = v.Named
	}
	preds, err := svc.PredictNamedBatch(family.Name, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	now := time.Now().UTC()
	records := make([]*models.Prediction, len(preds))
	for i, p := range preds {
		records[i] = &models.Prediction{
			GameID:          vectors[i].GameID,
			ModelFamily:     p.Family,
			PredictedWinner: p.PredictedWinner,
			HomeWinProb:     p.HomeWinProb,
			Confidence:      p.Confidence,
			PredictedAt:     now,
		}
	}

	if !*dryRun {
		if err := db.Predictions.Replace(ctx, records); err != nil {
			log.Fatal().Err(err).Msg("Failed to store predictions")
		}
	}

	printSummary(family.Name, vectors, preds)
}

func printSummary(familyName string, vectors []features.Vector, preds []inference.Prediction) {
	fmt.Printf("\n%d upcoming games scored with %s\n\n", len(preds), familyName)
	fmt.Printf("%-12s %-10s %-28s %-28s %6s %6s\n",
		"GAME", "DATE", "HOME", "AWAY", "P(H)", "CONF")

	var over60, over70, over80 int
	for i, p := range preds {
		v := vectors[i]
		fmt.Printf("%-12s %-10s %-28s %-28s %6.3f %6.3f\n",
			v.GameID, v.Date.Format("2006-01-02"), v.HomeTeam, v.AwayTeam,
			p.HomeWinProb, p.Confidence)

		winProb := p.HomeWinProb
		if p.PredictedWinner == "away" {
			winProb = 1 - p.HomeWinProb
		}
		if winProb > 0.6 {
			over60++
		}
		if winProb > 0.7 {
			over70++
		}
		if winProb > 0.8 {
			over80++
		}
	}

	fmt.Printf("\npicks above 60%%: %d\n", over60)
	fmt.Printf("picks above 70%%: %d\n", over70)
	fmt.Printf("picks above 80%%: %d\n", over80)
}
