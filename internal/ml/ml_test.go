package ml

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler_FitTransform(t *testing.T) {
	s := &StandardScaler{}
	X := [][]float64{
		{1, 10, 7},
		{3, 20, 7},
		{5, 30, 7},
	}
	require.NoError(t, s.Fit(X))

	assert.InDelta(t, 3.0, s.Mean[0], 1e-9)
	assert.InDelta(t, 20.0, s.Mean[1], 1e-9)
	assert.Equal(t, 1.0, s.Std[2], "constant feature passes through unscaled")

	out := s.Transform(X)
	assert.InDelta(t, 0.0, out[1][0], 1e-9)
	assert.InDelta(t, -out[0][0], out[2][0], 1e-9)
	assert.InDelta(t, 0.0, out[0][2], 1e-9)

	// Input rows untouched.
	assert.Equal(t, 1.0, X[0][0])
}

func TestStandardScaler_Errors(t *testing.T) {
	s := &StandardScaler{}
	assert.Error(t, s.Fit(nil))
	assert.Error(t, s.Fit([][]float64{{1, 2}, {1}}))
}

// syntheticData builds a linearly separable-ish binary problem on two
// informative features plus one noise feature.
func syntheticData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := float64(i%17)/17 - 0.5
		b := float64(i%29)/29 - 0.5
		noise := float64(i%7) / 7
		X[i] = []float64{a, b, noise}
		if 2*a+b > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestGBT_LearnsSeparableData(t *testing.T) {
	X, y := syntheticData(400)

	model := NewGBT(GBTConfig{NEstimators: 60, MaxDepth: 3, LearningRate: 0.2, MinSamplesLeaf: 5})
	require.NoError(t, model.Fit(X, y))

	correct := 0
	for i := range X {
		p := model.PredictProba(X[i])
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
		if float64(model.Predict(X[i])) == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(X)), 0.9, "should fit the training signal")
}

func TestGBT_Deterministic(t *testing.T) {
	X, y := syntheticData(200)

	a := NewGBT(GBTConfig{NEstimators: 20, MaxDepth: 3, LearningRate: 0.2, MinSamplesLeaf: 5})
	b := NewGBT(GBTConfig{NEstimators: 20, MaxDepth: 3, LearningRate: 0.2, MinSamplesLeaf: 5})
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	for i := range X {
		assert.Equal(t, a.PredictProba(X[i]), b.PredictProba(X[i]))
	}
}

func TestGBT_FeatureImportance(t *testing.T) {
	X, y := syntheticData(400)

	model := NewGBT(GBTConfig{NEstimators: 40, MaxDepth: 3, LearningRate: 0.2, MinSamplesLeaf: 5})
	require.NoError(t, model.Fit(X, y))

	require.Len(t, model.Importance, 3)
	sum := model.Importance[0] + model.Importance[1] + model.Importance[2]
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, model.Importance[0], model.Importance[2],
		"informative feature should outrank noise")
}

func TestGBT_RoundTripJSON(t *testing.T) {
	X, y := syntheticData(150)
	model := NewGBT(GBTConfig{NEstimators: 10, MaxDepth: 2, LearningRate: 0.2, MinSamplesLeaf: 5})
	require.NoError(t, model.Fit(X, y))

	raw, err := json.Marshal(model)
	require.NoError(t, err)

	var restored GBT
	require.NoError(t, json.Unmarshal(raw, &restored))

	for i := 0; i < 20; i++ {
		assert.InDelta(t, model.PredictProba(X[i]), restored.PredictProba(X[i]), 1e-12)
	}
}

func TestGBT_Errors(t *testing.T) {
	model := NewGBT(DefaultGBTConfig())
	assert.Error(t, model.Fit(nil, nil))
	assert.Error(t, model.Fit([][]float64{{1}}, []float64{1, 0}))
}

func TestEvaluate_KnownValues(t *testing.T) {
	yTrue := []float64{1, 1, 1, 0, 0, 0}
	probs := []float64{0.9, 0.8, 0.3, 0.6, 0.2, 0.1}
	// Predictions at 0.5: 1,1,0,1,0,0 -> tp=2 fp=1 tn=2 fn=1

	ev, err := Evaluate(yTrue, probs)
	require.NoError(t, err)

	assert.InDelta(t, 4.0/6.0, ev.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3.0, ev.Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, ev.Recall, 1e-9)
	assert.InDelta(t, 2.0/3.0, ev.F1, 1e-9)
	// Pair count 9, concordant: (0.9,0.8 beat all negatives)=6,
	// 0.3 beats 0.2 and 0.1 -> 8 of 9.
	assert.InDelta(t, 8.0/9.0, ev.AUC, 1e-9)
	assert.Equal(t, 6, ev.N)
	assert.False(t, math.IsInf(ev.LogLoss, 0))
}

func TestAUC_PerfectAndDegenerate(t *testing.T) {
	assert.Equal(t, 1.0, AUC([]float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9}))
	assert.Equal(t, 0.5, AUC([]float64{1, 1}, []float64{0.3, 0.7}), "single class")
	assert.Equal(t, 0.5, AUC([]float64{0, 1, 0, 1}, []float64{0.4, 0.4, 0.4, 0.4}), "all tied")
}

func TestLogLoss_ClipsExtremes(t *testing.T) {
	ll := LogLoss([]float64{1, 0}, []float64{0, 1})
	assert.False(t, math.IsInf(ll, 0))
	assert.Greater(t, ll, 30.0)
}
