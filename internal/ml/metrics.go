package ml

import (
	"fmt"
	"math"
	"sort"
)

// Evaluation holds classification metrics computed on a held-out set.
// These are the artifact's quality contract, not optional logging.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"auc"`
	LogLoss   float64 `json:"log_loss"`
	N         int     `json:"n"`
}

// Evaluate computes all metrics from true labels (0/1) and predicted
// positive-class probabilities, thresholding at 0.5.
func Evaluate(yTrue, probs []float64) (Evaluation, error) {
	if len(yTrue) != len(probs) {
		return Evaluation{}, fmt.Errorf("evaluate: %d labels but %d probabilities", len(yTrue), len(probs))
	}
	if len(yTrue) == 0 {
		return Evaluation{}, fmt.Errorf("evaluate: empty test set")
	}

	var tp, fp, tn, fn float64
	for i, y := range yTrue {
		pred := 0.0
		if probs[i] >= 0.5 {
			pred = 1.0
		}
		switch {
		case pred == 1 && y == 1:
			tp++
		case pred == 1 && y == 0:
			fp++
		case pred == 0 && y == 0:
			tn++
		default:
			fn++
		}
	}

	ev := Evaluation{N: len(yTrue)}
	ev.Accuracy = (tp + tn) / float64(len(yTrue))
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	ev.AUC = AUC(yTrue, probs)
	ev.LogLoss = LogLoss(yTrue, probs)
	return ev, nil
}

// AUC computes the area under the ROC curve via the rank statistic,
// with midranks for tied scores. Degenerate single-class inputs
// return 0.5.
func AUC(yTrue, probs []float64) float64 {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] < probs[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// Midrank for the tie group [i, j).
		mid := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = mid
		}
		i = j
	}

	var nPos, nNeg, rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// LogLoss computes the mean negative log-likelihood with probability
// clipping to keep the result finite.
func LogLoss(yTrue, probs []float64) float64 {
	const eps = 1e-15
	total := 0.0
	for i, y := range yTrue {
		p := clamp(probs[i], eps, 1-eps)
		if y == 1 {
			total -= math.Log(p)
		} else {
			total -= math.Log(1 - p)
		}
	}
	return total / float64(len(yTrue))
}
