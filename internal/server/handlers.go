package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/metrics"
)

// GameRequest is one game to score. Features are supplied by name and
// validated against the served model's schema before scoring.
type GameRequest struct {
	GameID   string             `json:"game_id"`
	Features map[string]float64 `json:"features"`
}

// PredictRequest is a batch prediction payload.
type PredictRequest struct {
	ModelFamily string        `json:"model_family"`
	Games       []GameRequest `json:"games"`
}

// SinglePredictRequest scores one game.
type SinglePredictRequest struct {
	ModelFamily string             `json:"model_family"`
	GameID      string             `json:"game_id"`
	Features    map[string]float64 `json:"features"`
}

// GamePrediction is one scored game in a response.
type GamePrediction struct {
	GameID string `json:"game_id"`
	inference.Prediction
}

// PredictResponse is the batch prediction result.
type PredictResponse struct {
	ModelFamily string           `json:"model_family"`
	Predictions []GamePrediction `json:"predictions"`
	LatencyMs   float64          `json:"latency_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health reports service and dependency status
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]bool{}
	healthy := true
	if s.db != nil {
		ok := s.db.Health(ctx) == nil
		checks["postgres"] = ok
		healthy = healthy && ok
		s.db.UpdateConnectionMetrics()
	}
	if s.cache != nil {
		// Cache is an optimization; a Redis outage degrades, not fails.
		checks["redis"] = s.cache.Health(ctx) == nil
	}

	snap := s.svc.Snapshot()
	checks["models_loaded"] = len(snap.Artifacts) > 0
	healthy = healthy && len(snap.Artifacts) > 0

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}
	writeJSON(w, status, map[string]interface{}{
		"status":    statusText,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// Models lists loaded artifacts per family
func (s *Server) Models(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()

	type modelInfo struct {
		Family       string    `json:"family"`
		ArtifactID   string    `json:"artifact_id"`
		CreatedAt    time.Time `json:"created_at"`
		FeatureOrder []string  `json:"feature_order"`
	}
	out := make([]modelInfo, 0, len(snap.Artifacts))
	for _, name := range features.Names() {
		a, ok := snap.Artifacts[name]
		if !ok {
			continue
		}
		out = append(out, modelInfo{
			Family:       name,
			ArtifactID:   a.Metadata.ID,
			CreatedAt:    a.Metadata.CreatedAt,
			FeatureOrder: a.Metadata.FeatureOrder,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":    out,
		"loaded_at": snap.LoadedAt,
	})
}

// Predict scores a batch of games for one model family
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Games) == 0 {
		writeError(w, http.StatusBadRequest, "games is required")
		return
	}

	family, err := features.ByName(req.ModelFamily)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows := make([]map[string]float64, len(req.Games))
	for i, g := range req.Games {
		rows[i] = g.Features
	}

	preds, err := s.svc.PredictNamedBatch(family.Name, rows)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	out := make([]GamePrediction, len(preds))
	for i, p := range preds {
		out[i] = GamePrediction{GameID: req.Games[i].GameID, Prediction: p}
		if s.cache != nil && req.Games[i].GameID != "" {
			s.cache.SetPrediction(r.Context(), req.Games[i].GameID, p)
		}
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		ModelFamily: family.Name,
		Predictions: out,
		LatencyMs:   float64(time.Since(started).Microseconds()) / 1000,
	})
}

// PredictSingle scores one game, consulting the prediction cache first
func (s *Server) PredictSingle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req SinglePredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	family, err := features.ByName(req.ModelFamily)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Validate against the served schema before the cache, so a
	// malformed payload never rides a stale hit.
	a, err := s.svc.Artifact(family.Name)
	if err != nil {
		s.writePredictError(w, err)
		return
	}
	if _, err := features.VectorFrom(a.Metadata.FeatureOrder, req.Features); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.cache != nil && req.GameID != "" {
		if p, ok := s.cache.GetPrediction(r.Context(), family.Name, req.GameID); ok {
			writeJSON(w, http.StatusOK, PredictResponse{
				ModelFamily: family.Name,
				Predictions: []GamePrediction{{GameID: req.GameID, Prediction: p}},
				LatencyMs:   float64(time.Since(started).Microseconds()) / 1000,
			})
			return
		}
	}

	pred, err := s.svc.PredictNamedOne(family.Name, req.Features)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	if s.cache != nil && req.GameID != "" {
		s.cache.SetPrediction(r.Context(), req.GameID, pred)
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		ModelFamily: family.Name,
		Predictions: []GamePrediction{{GameID: req.GameID, Prediction: pred}},
		LatencyMs:   float64(time.Since(started).Microseconds()) / 1000,
	})
}

// writePredictError maps inference errors onto HTTP statuses. A family
// with no loaded artifact is a client-visible 400, not a 500: the
// request named something the service cannot serve.
func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inference.ErrModelNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, inference.ErrFeatureMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		metrics.RecordError("server", "predict")
		writeError(w, http.StatusInternalServerError, "prediction failed")
	}
}
