// Package ml implements the model layer: feature scaling, a gradient
// boosting classifier and evaluation metrics.
package ml

import (
	"fmt"
	"math"
)

// StandardScaler standardizes features to zero mean and unit variance.
// Fit on training rows only; the fitted parameters travel with the
// model artifact.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-feature mean and standard deviation.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler: no rows to fit")
	}
	n := len(X[0])
	s.Mean = make([]float64, n)
	s.Std = make([]float64, n)

	for _, row := range X {
		if len(row) != n {
			return fmt.Errorf("scaler: inconsistent row width %d, expected %d", len(row), n)
		}
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= float64(len(X))
	}

	for _, row := range X {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / float64(len(X)))
		// Constant features pass through unscaled.
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

// NFeatures returns the fitted feature count, 0 when unfitted.
func (s *StandardScaler) NFeatures() int {
	return len(s.Mean)
}

// TransformRow standardizes a single row into a new slice.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// Transform standardizes a matrix into new storage.
func (s *StandardScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}
