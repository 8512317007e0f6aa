package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// NaiveBayesClassifier assumes conditionally independent features given the
// class. Variant selects the feature likelihood: "gaussian", "multinomial"
// (non-negative counts) or "bernoulli" (binarized at Binarize).
type NaiveBayesClassifier struct {
	Variant      string  `param:"nb_type"`
	VarSmoothing float64 `param:"var_smoothing"`
	Alpha        float64 `param:"alpha"`
	Binarize     float64 `param:"binarize"`

	ClassValues []float64
	LogPrior    []float64
	// Gaussian: per-class feature means and variances.
	Theta [][]float64
	Var   [][]float64
	// Multinomial and Bernoulli: per-class feature log probabilities.
	FeatureLogProb [][]float64
	// Bernoulli only: log(1 - p).
	FeatureLogNeg [][]float64
}

// Fit estimates the class priors and the per-class feature likelihoods.
func (m *NaiveBayesClassifier) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	classes, labels := classList(y)
	k, nf := len(classes), len(X[0])
	m.ClassValues = classes

	counts := make([]float64, k)
	sums := matrix(k, nf)
	for i, row := range X {
		c := labels[i]
		counts[c]++
		for j, v := range row {
			x := v
			if m.Variant == "bernoulli" {
				x = m.binarize(v)
			} else if m.Variant == "multinomial" && v < 0 {
				return core.Errorf(core.CategoryInvalidArgument, "negative values in data passed to multinomial naive bayes")
			}
			sums[c][j] += x
		}
	}
	m.LogPrior = make([]float64, k)
	for c := range counts {
		m.LogPrior[c] = math.Log(counts[c] / float64(len(X)))
	}

	switch m.Variant {
	case "multinomial":
		m.FeatureLogProb = matrix(k, nf)
		for c := range k {
			total := floats.Sum(sums[c]) + m.Alpha*float64(nf)
			for j := range nf {
				m.FeatureLogProb[c][j] = math.Log((sums[c][j] + m.Alpha) / total)
			}
		}
	case "bernoulli":
		m.FeatureLogProb = matrix(k, nf)
		m.FeatureLogNeg = matrix(k, nf)
		for c := range k {
			for j := range nf {
				p := (sums[c][j] + m.Alpha) / (counts[c] + 2*m.Alpha)
				m.FeatureLogProb[c][j] = math.Log(p)
				m.FeatureLogNeg[c][j] = math.Log(1 - p)
			}
		}
	default:
		m.fitGaussian(X, labels, counts, sums)
	}
	return nil
}

func (m *NaiveBayesClassifier) fitGaussian(X [][]float64, labels []int, counts []float64, sums [][]float64) {
	k, nf := len(counts), len(X[0])
	m.Theta = matrix(k, nf)
	m.Var = matrix(k, nf)
	for c := range k {
		for j := range nf {
			m.Theta[c][j] = sums[c][j] / counts[c]
		}
	}
	for i, row := range X {
		c := labels[i]
		for j, v := range row {
			d := v - m.Theta[c][j]
			m.Var[c][j] += d * d
		}
	}

	// The smoothing term is relative to the largest overall feature variance.
	maxVar := 0.0
	for j := range nf {
		mean := 0.0
		for _, row := range X {
			mean += row[j]
		}
		mean /= float64(len(X))
		v := 0.0
		for _, row := range X {
			v += (row[j] - mean) * (row[j] - mean)
		}
		maxVar = math.Max(maxVar, v/float64(len(X)))
	}
	eps := m.VarSmoothing * maxVar
	if eps == 0 {
		eps = 1e-9
	}
	for c := range k {
		for j := range nf {
			m.Var[c][j] = m.Var[c][j]/counts[c] + eps
		}
	}
}

func (m *NaiveBayesClassifier) binarize(v float64) float64 {
	if v > m.Binarize {
		return 1
	}
	return 0
}

// Classes returns the sorted class values seen during Fit.
func (m *NaiveBayesClassifier) Classes() []float64 { return m.ClassValues }

// Predict returns the maximum a posteriori class of each row.
func (m *NaiveBayesClassifier) Predict(X [][]float64) []float64 {
	return predictFromProba(m.ClassValues, m.PredictProba(X))
}

// PredictProba returns the normalized posterior of each class.
func (m *NaiveBayesClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		jll := m.jointLogLikelihood(row)
		lse := floats.LogSumExp(jll)
		for c := range jll {
			jll[c] = math.Exp(jll[c] - lse)
		}
		out[i] = jll
	}
	return out
}

func (m *NaiveBayesClassifier) jointLogLikelihood(row []float64) []float64 {
	jll := make([]float64, len(m.ClassValues))
	for c := range jll {
		s := m.LogPrior[c]
		switch m.Variant {
		case "multinomial":
			for j, v := range row {
				s += v * m.FeatureLogProb[c][j]
			}
		case "bernoulli":
			for j, v := range row {
				if m.binarize(v) == 1 {
					s += m.FeatureLogProb[c][j]
				} else {
					s += m.FeatureLogNeg[c][j]
				}
			}
		default:
			for j, v := range row {
				d := v - m.Theta[c][j]
				s -= 0.5*math.Log(2*math.Pi*m.Var[c][j]) + 0.5*d*d/m.Var[c][j]
			}
		}
		jll[c] = s
	}
	return jll
}

func matrix(r, c int) [][]float64 {
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
	}
	return out
}
