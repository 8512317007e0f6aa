// Package ml implements the closed set of model families available to
// experiments, together with the split and evaluation helpers used by the
// training pipeline.
//
// Feature matrices are row-major [][]float64. Classification targets are
// float64 class values; models keep the sorted distinct values seen during
// Fit as their class list.
package ml

import (
	"errors"
	"math"
	"slices"
)

// Model is a fitted or unfitted supervised estimator.
type Model interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) []float64
}

// Classifier is a model that also estimates class probabilities. Columns of
// PredictProba follow Classes.
type Classifier interface {
	Model
	Classes() []float64
	PredictProba(X [][]float64) [][]float64
}

// ModelSeed seeds the internal randomness of every model so identical
// hyperparameters reproduce identical fits.
const ModelSeed = 42

var (
	errEmptyInput = errors.New("ml: empty training set")
	errShape      = errors.New("ml: X and y length mismatch")
)

func checkXY(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return errEmptyInput
	}
	if len(X) != len(y) {
		return errShape
	}
	return nil
}

// classList returns the sorted distinct values of y and the class index of
// every sample.
func classList(y []float64) ([]float64, []int) {
	classes := slices.Clone(y)
	slices.Sort(classes)
	classes = slices.Compact(classes)
	idx := make([]int, len(y))
	for i, v := range y {
		idx[i], _ = slices.BinarySearch(classes, v)
	}
	return classes, idx
}

// argmax returns the index of the largest value; ties go to the lowest index.
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// predictFromProba maps each probability row to its most likely class.
func predictFromProba(classes []float64, proba [][]float64) []float64 {
	out := make([]float64, len(proba))
	for i, p := range proba {
		out[i] = classes[argmax(p)]
	}
	return out
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func manhattan(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += math.Abs(a[i] - b[i])
	}
	return s
}

// normalize scales p in place to sum to one. An all-zero vector is left as is.
func normalize(p []float64) {
	s := 0.0
	for _, v := range p {
		s += v
	}
	if s == 0 {
		return
	}
	for i := range p {
		p[i] /= s
	}
}
