package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbaml_v3/pipeline/internal/artifact"
	"nbaml_v3/pipeline/internal/features"
	"nbaml_v3/pipeline/internal/inference"
	"nbaml_v3/pipeline/internal/ml"
)

// newTestServer trains a small model on the global family's schema and
// serves it with no database or cache attached.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	family, err := features.ByName(features.FamilyGlobal)
	require.NoError(t, err)
	width := len(family.FeatureOrder())

	n := 150
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, width)
		row[0] = float64(i%19)/19 - 0.5
		row[1] = (row[0]*800 + 400) / 800
		X[i] = row
		if row[0] > 0 {
			y[i] = 1
		}
	}

	scaler := &ml.StandardScaler{}
	require.NoError(t, scaler.Fit(X))
	model := ml.NewGBT(ml.GBTConfig{NEstimators: 20, MaxDepth: 3, LearningRate: 0.2, MinSamplesLeaf: 5})
	require.NoError(t, model.Fit(scaler.Transform(X), y))

	store, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &artifact.Artifact{
		Metadata: artifact.Metadata{
			ID:           uuid.NewString(),
			Family:       features.FamilyGlobal,
			CreatedAt:    time.Now().UTC(),
			FeatureOrder: family.FeatureOrder(),
		},
		Scaler: scaler,
		Model:  model,
	}))

	svc := inference.New(store, features.FamilyGlobal)
	require.NoError(t, svc.Reload(context.Background()))
	return New(svc, nil, nil)
}

// namedFeatures fills the global family's schema, overriding elo_diff.
func namedFeatures(eloDiff float64) map[string]float64 {
	family, _ := features.ByName(features.FamilyGlobal)
	named := make(map[string]float64)
	for _, name := range family.FeatureOrder() {
		named[name] = 0
	}
	named["elo_diff"] = eloDiff
	named["elo_diff_norm"] = (eloDiff + 400) / 800
	named["home_last10_wins"] = 0.5
	named["away_last10_wins"] = 0.5
	named["over_under"] = 220
	named["ml_home_prob"] = 0.5
	named["ml_away_prob"] = 0.5
	named["rest_days_home"] = 2
	named["rest_days_away"] = 2
	return named
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPredict_Batch(t *testing.T) {
	router := newTestServer(t).Router()

	w := postJSON(t, router, "/predict", PredictRequest{
		ModelFamily: "global",
		Games: []GameRequest{
			{GameID: "g1", Features: namedFeatures(120)},
			{GameID: "g2", Features: namedFeatures(-120)},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "g1", resp.Predictions[0].GameID)
	assert.Equal(t, "home", resp.Predictions[0].PredictedWinner)
	assert.Equal(t, "away", resp.Predictions[1].PredictedWinner)
	assert.GreaterOrEqual(t, resp.LatencyMs, 0.0)
	for _, p := range resp.Predictions {
		assert.GreaterOrEqual(t, p.Confidence, 0.0)
		assert.LessOrEqual(t, p.Confidence, 1.0)
	}
}

func TestPredict_UnknownFamily(t *testing.T) {
	router := newTestServer(t).Router()

	w := postJSON(t, router, "/predict", PredictRequest{
		ModelFamily: "nope",
		Games:       []GameRequest{{GameID: "g1", Features: namedFeatures(0)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_MissingFeature(t *testing.T) {
	router := newTestServer(t).Router()

	named := namedFeatures(0)
	delete(named, "spread_num")
	w := postJSON(t, router, "/predict", PredictRequest{
		ModelFamily: "global",
		Games:       []GameRequest{{GameID: "g1", Features: named}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "spread_num")
}

func TestPredict_MalformedBody(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest("POST", "/predict", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_EmptyBatch(t *testing.T) {
	router := newTestServer(t).Router()

	w := postJSON(t, router, "/predict", PredictRequest{ModelFamily: "global"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_NoModelLoaded(t *testing.T) {
	store, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	router := New(inference.New(store, features.FamilyGlobal), nil, nil).Router()

	w := postJSON(t, router, "/predict", PredictRequest{
		ModelFamily: "global",
		Games:       []GameRequest{{GameID: "g1", Features: namedFeatures(0)}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_FallbackFamilyServes(t *testing.T) {
	// Only a global artifact exists; recency requests are answered by
	// it, assembled against its 12-feature schema.
	router := newTestServer(t).Router()

	w := postJSON(t, router, "/predict", PredictRequest{
		ModelFamily: "recency",
		Games: []GameRequest{
			{GameID: "g1", Features: namedFeatures(150)},
			{GameID: "g2", Features: namedFeatures(-150)},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "recency", resp.ModelFamily)
	assert.Equal(t, "home", resp.Predictions[0].PredictedWinner)
	assert.Equal(t, "away", resp.Predictions[1].PredictedWinner)
}

// fakeCache is an in-memory PredictionCache for handler tests.
type fakeCache struct {
	entries map[string]inference.Prediction
	writes  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]inference.Prediction{}}
}

func (f *fakeCache) GetPrediction(_ context.Context, family, gameID string) (inference.Prediction, bool) {
	p, ok := f.entries[family+":"+gameID]
	return p, ok
}

func (f *fakeCache) SetPrediction(_ context.Context, gameID string, p inference.Prediction) {
	f.entries[p.Family+":"+gameID] = p
	f.writes++
}

func (f *fakeCache) Health(context.Context) error { return nil }

func TestPredictSingle_ValidatesBeforeCache(t *testing.T) {
	srv := newTestServer(t)
	srv.cache = newFakeCache()
	router := srv.Router()

	// Warm the cache for g1.
	w := postJSON(t, router, "/predict/single", SinglePredictRequest{
		ModelFamily: "global", GameID: "g1", Features: namedFeatures(200),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A malformed payload for the same game must not ride the hit.
	bad := namedFeatures(200)
	delete(bad, "spread_num")
	w = postJSON(t, router, "/predict/single", SinglePredictRequest{
		ModelFamily: "global", GameID: "g1", Features: bad,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "spread_num")

	// A well-formed repeat serves from cache without a second write.
	w = postJSON(t, router, "/predict/single", SinglePredictRequest{
		ModelFamily: "global", GameID: "g1", Features: namedFeatures(200),
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, srv.cache.(*fakeCache).writes)
}

func TestPredictSingle(t *testing.T) {
	router := newTestServer(t).Router()

	w := postJSON(t, router, "/predict/single", SinglePredictRequest{
		ModelFamily: "global",
		GameID:      "g1",
		Features:    namedFeatures(200),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Predictions, 1)
	assert.Equal(t, "home", resp.Predictions[0].PredictedWinner)
}

func TestModels(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest("GET", "/models", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Models []struct {
			Family       string   `json:"family"`
			ArtifactID   string   `json:"artifact_id"`
			FeatureOrder []string `json:"feature_order"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Both families serve: recency falls back to the global artifact.
	require.Len(t, resp.Models, 2)
	assert.Equal(t, resp.Models[0].ArtifactID, resp.Models[1].ArtifactID)
}

func TestHealth(t *testing.T) {
	router := newTestServer(t).Router()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
