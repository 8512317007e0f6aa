package ml

import (
	"cmp"
	"math"
	"slices"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// KNNClassifier votes among the K nearest training samples.
type KNNClassifier struct {
	K       int    `param:"n_neighbors"`
	Weights string `param:"weights"`
	Metric  string `param:"metric"`

	Points      [][]float64
	Labels      []int
	ClassValues []float64
}

// Fit memorizes the training set.
func (m *KNNClassifier) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if m.K > len(X) {
		return core.Errorf(core.CategoryInvalidArgument,
			"n_neighbors (%d) must not exceed the number of training samples (%d)", m.K, len(X))
	}
	m.Points = make([][]float64, len(X))
	for i, row := range X {
		m.Points[i] = slices.Clone(row)
	}
	m.ClassValues, m.Labels = classList(y)
	return nil
}

// Classes returns the sorted class values seen during Fit.
func (m *KNNClassifier) Classes() []float64 { return m.ClassValues }

// Predict returns the majority class of each row's neighborhood.
func (m *KNNClassifier) Predict(X [][]float64) []float64 {
	return predictFromProba(m.ClassValues, m.PredictProba(X))
}

// PredictProba returns the (weighted) share of each class among the K
// nearest neighbors.
func (m *KNNClassifier) PredictProba(X [][]float64) [][]float64 {
	type neighbor struct {
		idx  int
		dist float64
	}
	out := make([][]float64, len(X))
	buf := make([]neighbor, len(m.Points))
	for r, row := range X {
		for i, p := range m.Points {
			buf[i] = neighbor{idx: i, dist: m.distance(row, p)}
		}
		slices.SortStableFunc(buf, func(a, b neighbor) int { return cmp.Compare(a.dist, b.dist) })
		nearest := buf[:m.K]

		proba := make([]float64, len(m.ClassValues))
		exact := m.Weights == "distance" && nearest[0].dist == 0
		for _, n := range nearest {
			w := 1.0
			if m.Weights == "distance" {
				switch {
				case exact && n.dist == 0:
					w = 1
				case exact:
					w = 0
				default:
					w = 1 / n.dist
				}
			}
			proba[m.Labels[n.idx]] += w
		}
		normalize(proba)
		out[r] = proba
	}
	return out
}

func (m *KNNClassifier) distance(a, b []float64) float64 {
	if m.Metric == "manhattan" {
		return manhattan(a, b)
	}
	return math.Sqrt(sqDist(a, b))
}
