// Package inference serves win probabilities from loaded model
// artifacts. Loaded models are an immutable snapshot swapped
// atomically, so requests never observe a half-reloaded state.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/metrics"
)

var (
	// ErrModelNotFound is returned when no artifact is loaded for the
	// requested family.
	ErrModelNotFound = errors.New("model not loaded")
	// ErrFeatureMismatch is returned when a request vector does not
	// match the loaded artifact's feature schema.
	ErrFeatureMismatch = errors.New("feature vector does not match model schema")
)

// Prediction is one scored feature vector.
type Prediction struct {
	Family          string  `json:"model_family"`
	ArtifactID      string  `json:"artifact_id"`
	PredictedWinner string  `json:"predicted_winner"` // "home" or "away"
	HomeWinProb     float64 `json:"home_win_prob"`
	Confidence      float64 `json:"confidence"`
}

// Snapshot is one immutable view of the loaded artifacts.
type Snapshot struct {
	Artifacts map[string]*artifact.Artifact
	LoadedAt  time.Time
}

// Service scores feature vectors against the current snapshot.
type Service struct {
	store         artifact.Store
	defaultFamily string
	snap          atomic.Pointer[Snapshot]
}

// New creates a Service with no models loaded; call Reload before
// serving.
func New(store artifact.Store, defaultFamily string) *Service {
	s := &Service{store: store, defaultFamily: defaultFamily}
	s.snap.Store(&Snapshot{Artifacts: map[string]*artifact.Artifact{}})
	return s
}

// Reload selects the latest artifact per family and swaps the snapshot
// in one atomic step. A family with no lineage of its own serves the
// default family's artifact. In-flight requests keep the old snapshot.
func (s *Service) Reload(ctx context.Context) error {
	next := &Snapshot{
		Artifacts: make(map[string]*artifact.Artifact, len(features.Names())),
		LoadedAt:  time.Now().UTC(),
	}

	for _, name := range features.Names() {
		a, err := artifact.Select(ctx, s.store, name, s.defaultFamily)
		if err != nil {
			if errors.Is(err, artifact.ErrNoArtifacts) {
				log.Warn().Str("family", name).Msg("No artifact available for family")
				metrics.SetArtifactLoaded(name, false)
				continue
			}
			return fmt.Errorf("failed to load artifact for family %s: %w", name, err)
		}
		next.Artifacts[name] = a
		metrics.SetArtifactLoaded(name, true)
		log.Info().
			Str("family", name).
			Str("artifact_id", a.Metadata.ID).
			Time("created_at", a.Metadata.CreatedAt).
			Msg("Artifact loaded")
	}

	if len(next.Artifacts) == 0 {
		return fmt.Errorf("reload found no servable artifacts: %w", artifact.ErrNoArtifacts)
	}

	s.snap.Store(next)
	return nil
}

// Snapshot returns the current loaded-model view.
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Artifact returns the loaded artifact serving a family.
func (s *Service) Artifact(family string) (*artifact.Artifact, error) {
	a, ok := s.snap.Load().Artifacts[family]
	if !ok {
		return nil, fmt.Errorf("family %q: %w", family, ErrModelNotFound)
	}
	return a, nil
}

// PredictOne scores a single feature vector for a family.
func (s *Service) PredictOne(family string, values []float64) (Prediction, error) {
	preds, err := s.PredictBatch(family, [][]float64{values})
	if err != nil {
		return Prediction{}, err
	}
	return preds[0], nil
}

// PredictBatch scores vectors against the family's loaded artifact.
// All vectors are validated against the artifact schema before any is
// scored; a bad row fails the whole batch.
func (s *Service) PredictBatch(family string, rows [][]float64) ([]Prediction, error) {
	started := time.Now()

	a, err := s.Artifact(family)
	if err != nil {
		metrics.RecordPrediction(family, "model_not_found", time.Since(started).Seconds())
		return nil, err
	}

	want := len(a.Metadata.FeatureOrder)
	for i, row := range rows {
		if len(row) != want {
			metrics.RecordPrediction(family, "feature_mismatch", time.Since(started).Seconds())
			return nil, fmt.Errorf("row %d has %d features, model %s expects %d: %w",
				i, len(row), a.Metadata.ID, want, ErrFeatureMismatch)
		}
	}

	return s.score(a, family, rows, started), nil
}

// PredictNamedOne scores a single game supplied as named features.
func (s *Service) PredictNamedOne(family string, named map[string]float64) (Prediction, error) {
	preds, err := s.PredictNamedBatch(family, []map[string]float64{named})
	if err != nil {
		return Prediction{}, err
	}
	return preds[0], nil
}

// PredictNamedBatch scores named-feature rows. Vectors are assembled
// against the served artifact's own schema, not the requested family's,
// so a family answered by the fallback artifact still scores correctly.
func (s *Service) PredictNamedBatch(family string, rows []map[string]float64) ([]Prediction, error) {
	started := time.Now()

	a, err := s.Artifact(family)
	if err != nil {
		metrics.RecordPrediction(family, "model_not_found", time.Since(started).Seconds())
		return nil, err
	}

	vecs := make([][]float64, len(rows))
	for i, named := range rows {
		vec, err := features.VectorFrom(a.Metadata.FeatureOrder, named)
		if err != nil {
			metrics.RecordPrediction(family, "feature_mismatch", time.Since(started).Seconds())
			return nil, fmt.Errorf("row %d for model %s: %s: %w",
				i, a.Metadata.ID, err, ErrFeatureMismatch)
		}
		vecs[i] = vec
	}

	return s.score(a, family, vecs, started), nil
}

// score runs already-validated vectors through one artifact.
func (s *Service) score(a *artifact.Artifact, family string, rows [][]float64, started time.Time) []Prediction {
	preds := make([]Prediction, len(rows))
	for i, row := range rows {
		p := a.Model.PredictProba(a.Scaler.TransformRow(row))
		winner := "away"
		if p >= 0.5 {
			winner = "home"
		}
		preds[i] = Prediction{
			Family:          family,
			ArtifactID:      a.Metadata.ID,
			PredictedWinner: winner,
			HomeWinProb:     p,
			Confidence:      confidence(p),
		}
	}

	metrics.RecordPrediction(family, "success", time.Since(started).Seconds())
	return preds
}

// confidence maps a probability to distance from the coin flip,
// scaled to [0, 1].
func confidence(p float64) float64 {
	c := (p - 0.5) * 2
	if c < 0 {
		c = -c
	}
	return c
}
