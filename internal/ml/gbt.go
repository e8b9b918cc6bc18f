package ml

import (
	"fmt"
	"math"
	"sort"
)

// GBTConfig holds gradient boosting hyperparameters.
type GBTConfig struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// DefaultGBTConfig returns the reference hyperparameters.
func DefaultGBTConfig() GBTConfig {
	return GBTConfig{
		NEstimators:    300,
		MaxDepth:       6,
		LearningRate:   0.08,
		MinSamplesLeaf: 5,
	}
}

// l2Reg stabilizes leaf weights on small node populations.
const l2Reg = 1.0

// TreeNode is one node of a regression tree in flat-array form.
// Left/Right index into the owning tree's node slice; -1 marks a leaf.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a depth-limited regression tree fit to boosting residuals.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Left < 0 {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// GBT is a gradient boosting classifier over logistic loss. Trees are
// fit to gradient/hessian statistics with Newton leaf weights; the
// model is deterministic for a given input ordering.
type GBT struct {
	Config     GBTConfig `json:"config"`
	BaseScore  float64   `json:"base_score"` // log-odds prior
	Trees      []Tree    `json:"trees"`
	NFeatures  int       `json:"n_features"`
	Importance []float64 `json:"importance"` // normalized split gain per feature
}

// NewGBT creates an unfitted classifier with the given config.
func NewGBT(cfg GBTConfig) *GBT {
	return &GBT{Config: cfg}
}

// Fit trains the ensemble on a binary target (0/1).
func (m *GBT) Fit(X [][]float64, y []float64) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("gbt: no training rows")
	}
	if len(y) != n {
		return fmt.Errorf("gbt: %d rows but %d labels", n, len(y))
	}
	m.NFeatures = len(X[0])
	for i, row := range X {
		if len(row) != m.NFeatures {
			return fmt.Errorf("gbt: row %d has width %d, expected %d", i, len(row), m.NFeatures)
		}
	}

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)
	base = clamp(base, 1e-6, 1-1e-6)
	m.BaseScore = math.Log(base / (1 - base))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = m.BaseScore
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	m.Trees = make([]Tree, 0, m.Config.NEstimators)
	m.Importance = make([]float64, m.NFeatures)

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for round := 0; round < m.Config.NEstimators; round++ {
		for i := range scores {
			p := sigmoid(scores[i])
			grad[i] = y[i] - p
			hess[i] = p * (1 - p)
		}

		b := &treeBuilder{
			X:              X,
			grad:           grad,
			hess:           hess,
			maxDepth:       m.Config.MaxDepth,
			minSamplesLeaf: m.Config.MinSamplesLeaf,
			importance:     m.Importance,
		}
		tree := Tree{}
		b.grow(&tree, indices, 0)
		m.Trees = append(m.Trees, tree)

		for i := range scores {
			scores[i] += m.Config.LearningRate * tree.predict(X[i])
		}
	}

	normalize(m.Importance)
	return nil
}

// PredictProba returns the positive-class probability for one row.
func (m *GBT) PredictProba(x []float64) float64 {
	score := m.BaseScore
	for i := range m.Trees {
		score += m.Config.LearningRate * m.Trees[i].predict(x)
	}
	return sigmoid(score)
}

// Predict returns the 0/1 class at the 0.5 threshold.
func (m *GBT) Predict(x []float64) int {
	if m.PredictProba(x) >= 0.5 {
		return 1
	}
	return 0
}

type treeBuilder struct {
	X              [][]float64
	grad, hess     []float64
	maxDepth       int
	minSamplesLeaf int
	importance     []float64
}

// grow appends the subtree for idx rooted at the returned node index.
func (b *treeBuilder) grow(t *Tree, idx []int, depth int) int {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += b.grad[i]
		sumH += b.hess[i]
	}

	nodeIdx := len(t.Nodes)
	t.Nodes = append(t.Nodes, TreeNode{Left: -1, Right: -1, Value: leafWeight(sumG, sumH)})

	if depth >= b.maxDepth || len(idx) < 2*b.minSamplesLeaf {
		return nodeIdx
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sumG, sumH)
	if !ok {
		return nodeIdx
	}
	b.importance[feature] += gain

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	t.Nodes[nodeIdx].Feature = feature
	t.Nodes[nodeIdx].Threshold = threshold
	leftIdx := b.grow(t, left, depth+1)
	rightIdx := b.grow(t, right, depth+1)
	t.Nodes[nodeIdx].Left = leftIdx
	t.Nodes[nodeIdx].Right = rightIdx
	return nodeIdx
}

// bestSplit scans every feature for the threshold with maximal gain.
// Features are scanned in index order and strict improvement is
// required, so the choice is deterministic.
func (b *treeBuilder) bestSplit(idx []int, sumG, sumH float64) (int, float64, float64, bool) {
	parentScore := sumG * sumG / (sumH + l2Reg)

	bestGain := 1e-9
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	for f := 0; f < len(b.X[idx[0]]); f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X[order[a]][f] < b.X[order[c]][f]
		})

		var gL, hL float64
		for pos := 0; pos < len(order)-1; pos++ {
			i := order[pos]
			gL += b.grad[i]
			hL += b.hess[i]

			// No split between equal values.
			if b.X[order[pos]][f] == b.X[order[pos+1]][f] {
				continue
			}
			nLeft := pos + 1
			nRight := len(order) - nLeft
			if nLeft < b.minSamplesLeaf || nRight < b.minSamplesLeaf {
				continue
			}

			gR := sumG - gL
			hR := sumH - hL
			gain := gL*gL/(hL+l2Reg) + gR*gR/(hR+l2Reg) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (b.X[order[pos]][f] + b.X[order[pos+1]][f]) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}

func leafWeight(sumG, sumH float64) float64 {
	return sumG / (sumH + l2Reg)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func normalize(v []float64) {
	total := 0.0
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
