package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/config"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/logging"
	"nbaml_v3/pipeline/internal/ml"
)

// benchmarkInput is the stdin payload: a family plus labeled games
// with named features.
type benchmarkInput struct {
	ModelFamily string `json:"model_family"`
	Games       []struct {
		GameID   string             `json:"game_id"`
		Features map[string]float64 `json:"features"`
		HomeWon  *bool              `json:"home_won,omitempty"`
	} `json:"games"`
}

type benchmarkPrediction struct {
	GameID string `json:"game_id"`
	inference.Prediction
}

type benchmarkOutput struct {
	ModelFamily string                `json:"model_family"`
	ArtifactID  string                `json:"artifact_id"`
	Predictions []benchmarkPrediction `json:"predictions"`
	Evaluation  *ml.Evaluation        `json:"evaluation,omitempty"`
	LatencyMs   float64               `json:"latency_ms"`
	PerGameUs   float64               `json:"per_game_us"`
}

func main() {
	flag.Parse()

	cfg := config.MustLoad()
	logging.Setup(cfg)

	var input benchmarkInput
	if err := json.NewDecoder(os.Stdin).Decode(&input); err != nil {
		log.Fatal().Err(err).Msg("Failed to decode input")
	}
	if len(input.Games) == 0 {
		log.Fatal().Msg("Input contains no games")
	}

	family, err := features.ByName(input.ModelFamily)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown model family")
	}

	store, err := artifact.NewFSStore(cfg.ArtifactDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open artifact store")
	}
	svc := inference.New(store, cfg.DefaultFamily)
	if err := svc.Reload(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to load model artifacts")
	}

	rows := make([]map[string]float64, len(input.Games))
	for i, g := range input.Games {
		rows[i] = g.Features
	}

	started := time.Now()
	preds, err := svc.PredictNamedBatch(family.Name, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}
	elapsed := time.Since(started)

	out := benchmarkOutput{
		ModelFamily: family.Name,
		Predictions: make([]benchmarkPrediction, len(preds)),
		LatencyMs:   float64(elapsed.Microseconds()) / 1000,
		PerGameUs:   float64(elapsed.Microseconds()) / float64(len(preds)),
	}
	if len(preds) > 0 {
		out.ArtifactID = preds[0].ArtifactID
	}
	for i, p := range preds {
		out.Predictions[i] = benchmarkPrediction{GameID: input.Games[i].GameID, Prediction: p}
	}

	// Evaluate only when every game carries an outcome.
	labeled := true
	yTrue := make([]float64, len(input.Games))
	probs := make([]float64, len(input.Games))
	for i, g := range input.Games {
		if g.HomeWon == nil {
			labeled = false
			break
		}
		if *g.HomeWon {
			yTrue[i] = 1
		}
		probs[i] = preds[i].HomeWinProb
	}
	if labeled {
		ev, err := ml.Evaluate(yTrue, probs)
		if err != nil {
			log.Fatal().Err(err).Msg("Evaluation failed")
		}
		out.Evaluation = &ev
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to encode output")
	}
}
