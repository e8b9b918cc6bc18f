package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/logging"
	"nbaml_v3/pipeline/internal/ml"
	"nbaml_v3/pipeline/internal/pipeline"
	"nbaml_v3/pipeline/internal/repository"
	"nbaml_v3/pipeline/internal/trainer"
)

func main() {
	familyFlag := flag.String("family", "all", "model family to train (global, recency, all)")
	flag.Parse()

	cfg := config.MustLoad()
	logging.Setup(cfg)

	var names []string
	if *familyFlag == "all" {
		names = features.Names()
	} else {
		if _, err := features.ByName(*familyFlag); err != nil {
			log.Fatal().Err(err).Msg("Unknown model family")
		}
		names = []string{*familyFlag}
	}

	ctx := context.Background()

	db, err := repository.NewDatabaseFromDSN(ctx, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	resolver, err := pipeline.LoadResolver(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load team resolver")
	}
	builder := pipeline.NewBuilder(db, resolver)

	store, err := artifact.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open artifact store")
	}

	tr := trainer.New(store, ml.GBTConfig{
		NEstimators:    cfg.GBTEstimators,
		MaxDepth:       cfg.GBTMaxDepth,
		LearningRate:   cfg.GBTLearningRate,
		MinSamplesLeaf: 5,
	}, cfg.MinTrainingRows)

	failed := false
	for _, name := range names {
		family, err := features.ByName(name)
		if err != nil {
			log.Fatal().Err(err).Msg("Unknown model family")
		}

		vectors, err := builder.TrainingVectors(ctx, family)
		if err != nil {
			log.Error().Err(err).Str("family", name).Msg("Failed to build training vectors")
			failed = true
			continue
		}

		res, err := tr.Train(ctx, family, vectors)
		if err != nil {
			log.Error().Err(err).Str("family", name).Msg("Training failed")
			failed = true
			continue
		}

		printResult(res)
	}

	if failed {
		os.Exit(1)
	}
}

func printResult(res *trainer.Result) {
	fmt.Printf("\n=== %s ===\n", res.Family)
	fmt.Printf("artifact:   %s\n", res.ArtifactID)
	fmt.Printf("rows:       %d train / %d test (split %s)\n",
		res.TrainRows, res.TestRows, res.SplitDate.Format("2006-01-02"))
	fmt.Printf("range:      %s .. %s\n",
		res.TrainStart.Format("2006-01-02"), res.TrainEnd.Format("2006-01-02"))
	fmt.Printf("accuracy:   %.4f\n", res.Evaluation.Accuracy)
	fmt.Printf("precision:  %.4f\n", res.Evaluation.Precision)
	fmt.Printf("recall:     %.4f\n", res.Evaluation.Recall)
	fmt.Printf("f1:         %.4f\n", res.Evaluation.F1)
	fmt.Printf("auc:        %.4f\n", res.Evaluation.AUC)
	fmt.Printf("log_loss:   %.4f\n", res.Evaluation.LogLoss)
	fmt.Printf("duration:   %s\n", res.Duration.Round(time.Millisecond))

	fmt.Println("feature importance:")
	for _, fw := range res.Importance {
		fmt.Printf("  %-18s %.4f\n", fw.Name, fw.Weight)
	}
}
