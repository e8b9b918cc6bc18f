// Package trainer turns feature vectors into versioned model artifacts.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/metrics"
	"nbaml_v3/pipeline/internal/ml"
)

// ErrInsufficientData is returned when the labeled row count is below
// the training floor.
var ErrInsufficientData = errors.New("insufficient training data")

// DefaultMinRows is the floor on labeled rows before a run is allowed.
const DefaultMinRows = 1000

// splitFraction is the share of rows (by date) that land in the
// training partition.
const splitFraction = 0.8

// Trainer runs supervised training for a model family and persists
// the result.
type Trainer struct {
	store   artifact.Store
	cfg     ml.GBTConfig
	minRows int
}

// New creates a Trainer. minRows <= 0 selects DefaultMinRows.
func New(store artifact.Store, cfg ml.GBTConfig, minRows int) *Trainer {
	if minRows <= 0 {
		minRows = DefaultMinRows
	}
	return &Trainer{store: store, cfg: cfg, minRows: minRows}
}

// Result summarizes one completed training run.
type Result struct {
	ArtifactID string          `json:"artifact_id"`
	Family     string          `json:"family"`
	TrainRows  int             `json:"train_rows"`
	TestRows   int             `json:"test_rows"`
	TrainStart time.Time       `json:"train_start"`
	TrainEnd   time.Time       `json:"train_end"`
	SplitDate  time.Time       `json:"split_date"`
	Evaluation ml.Evaluation   `json:"evaluation"`
	Importance []FeatureWeight `json:"importance"`
	Duration   time.Duration   `json:"duration"`
}

// FeatureWeight pairs a feature name with its normalized split gain.
type FeatureWeight struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Train fits a model for the family on labeled vectors and saves a new
// artifact. The split is temporal: rows strictly before the
// 80th-percentile date train, the rest evaluate. Returns
// ErrInsufficientData when too few labeled rows exist.
func (t *Trainer) Train(ctx context.Context, family features.Family, vectors []features.Vector) (*Result, error) {
	started := time.Now()

	labeled := make([]features.Vector, 0, len(vectors))
	for _, v := range vectors {
		if v.Labeled {
			labeled = append(labeled, v)
		}
	}
	if len(labeled) < t.minRows {
		return nil, fmt.Errorf("family %s has %d labeled rows, need %d: %w",
			family.Name, len(labeled), t.minRows, ErrInsufficientData)
	}

	sort.SliceStable(labeled, func(i, j int) bool {
		if !labeled[i].Date.Equal(labeled[j].Date) {
			return labeled[i].Date.Before(labeled[j].Date)
		}
		return labeled[i].GameID < labeled[j].GameID
	})

	splitDate := labeled[int(float64(len(labeled))*splitFraction)].Date

	var trainX, testX [][]float64
	var trainY, testY []float64
	for _, v := range labeled {
		label := 0.0
		if v.HomeWin {
			label = 1.0
		}
		if v.Date.Before(splitDate) {
			trainX = append(trainX, v.Values)
			trainY = append(trainY, label)
		} else {
			testX = append(testX, v.Values)
			testY = append(testY, label)
		}
	}
	if len(trainX) == 0 || len(testX) == 0 {
		return nil, fmt.Errorf("family %s: degenerate temporal split at %s: %w",
			family.Name, splitDate.Format("2006-01-02"), ErrInsufficientData)
	}

	log.Info().
		Str("family", family.Name).
		Int("train_rows", len(trainX)).
		Int("test_rows", len(testX)).
		Time("split_date", splitDate).
		Msg("Starting training run")

	scaler := &ml.StandardScaler{}
	if err := scaler.Fit(trainX); err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}

	model := ml.NewGBT(t.cfg)
	if err := model.Fit(scaler.Transform(trainX), trainY); err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	probs := make([]float64, len(testX))
	for i, row := range testX {
		probs[i] = model.PredictProba(scaler.TransformRow(row))
	}
	ev, err := ml.Evaluate(testY, probs)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate model: %w", err)
	}

	order := family.FeatureOrder()
	a := &artifact.Artifact{
		Metadata: artifact.Metadata{
			ID:           uuid.NewString(),
			Family:       family.Name,
			CreatedAt:    time.Now().UTC(),
			FeatureOrder: order,
		},
		Scaler: scaler,
		Model:  model,
	}
	if err := t.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to save artifact: %w", err)
	}

	// Read back through the store so a broken round trip fails the run
	// instead of the next inference reload.
	reloaded, err := t.store.Latest(ctx, family.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to verify saved artifact: %w", err)
	}
	if reloaded.Metadata.ID != a.Metadata.ID {
		log.Warn().
			Str("saved", a.Metadata.ID).
			Str("latest", reloaded.Metadata.ID).
			Msg("A newer artifact superseded this run during training")
	}

	result := &Result{
		ArtifactID: a.Metadata.ID,
		Family:     family.Name,
		TrainRows:  len(trainX),
		TestRows:   len(testX),
		TrainStart: labeled[0].Date,
		TrainEnd:   labeled[len(labeled)-1].Date,
		SplitDate:  splitDate,
		Evaluation: ev,
		Importance: rankImportance(order, model.Importance),
		Duration:   time.Since(started),
	}

	metrics.TrainingRuns.WithLabelValues(family.Name, "success").Inc()
	metrics.TrainingAccuracy.WithLabelValues(family.Name).Set(ev.Accuracy)
	metrics.TrainingDuration.WithLabelValues(family.Name).Observe(result.Duration.Seconds())

	log.Info().
		Str("family", family.Name).
		Str("artifact_id", a.Metadata.ID).
		Float64("accuracy", ev.Accuracy).
		Float64("auc", ev.AUC).
		Float64("log_loss", ev.LogLoss).
		Dur("duration", result.Duration).
		Msg("Training run complete")

	return result, nil
}

// rankImportance pairs names with weights, descending by weight with a
// name tiebreak.
func rankImportance(names []string, weights []float64) []FeatureWeight {
	out := make([]FeatureWeight, 0, len(names))
	for i, name := range names {
		w := 0.0
		if i < len(weights) {
			w = weights[i]
		}
		out = append(out, FeatureWeight{Name: name, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Name < out[j].Name
	})
	return out
}
