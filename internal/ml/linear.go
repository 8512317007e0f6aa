package ml

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// svdRcond is the relative singular value cutoff below which directions are
// treated as rank deficient.
const svdRcond = 1e-10

// LinearRegressor is an ordinary least squares fit, optionally over a
// polynomial expansion of the features. Rank deficient designs get the
// minimum-norm solution.
type LinearRegressor struct {
	Kind         string `param:"regression_type"`
	FitIntercept bool   `param:"fit_intercept"`
	Degree       int    `param:"degree"`

	// Terms lists, per expanded feature, the input columns multiplied
	// together. Degree 1 yields one single-column term per input.
	Terms     [][]int
	Coef      []float64
	Intercept float64
}

// Fit solves the least squares problem through a thin SVD.
func (m *LinearRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	degree := max(m.Degree, 1)
	m.Terms = polynomialTerms(len(X[0]), degree)
	rows, cols := len(X), len(m.Terms)

	design := mat.NewDense(rows, cols, nil)
	for i, row := range X {
		for j, term := range m.Terms {
			design.Set(i, j, termValue(row, term))
		}
	}
	target := mat.NewDense(rows, 1, append([]float64(nil), y...))

	means := make([]float64, cols)
	yMean := 0.0
	if m.FitIntercept {
		for j := range cols {
			means[j] = mat.Sum(design.ColView(j)) / float64(rows)
		}
		yMean = mat.Sum(target) / float64(rows)
		for i := range rows {
			for j := range cols {
				design.Set(i, j, design.At(i, j)-means[j])
			}
			target.Set(i, 0, target.At(i, 0)-yMean)
		}
	}

	m.Coef = make([]float64, cols)
	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		return errors.New("ml: least squares factorization failed")
	}
	if rank := svd.Rank(svdRcond); rank > 0 {
		var sol mat.Dense
		svd.SolveTo(&sol, target, rank)
		for j := range cols {
			m.Coef[j] = sol.At(j, 0)
		}
	}

	m.Intercept = yMean
	for j, c := range m.Coef {
		m.Intercept -= c * means[j]
	}
	return nil
}

// Predict evaluates the fitted linear function on each row.
func (m *LinearRegressor) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		v := m.Intercept
		for j, term := range m.Terms {
			v += m.Coef[j] * termValue(row, term)
		}
		out[i] = v
	}
	return out
}

// polynomialTerms enumerates every monomial of total degree 1..degree over
// n inputs, lowest degree first and lexicographic within a degree.
func polynomialTerms(n, degree int) [][]int {
	var terms [][]int
	var walk func(start int, cur []int, left int)
	walk = func(start int, cur []int, left int) {
		if left == 0 {
			terms = append(terms, append([]int(nil), cur...))
			return
		}
		for f := start; f < n; f++ {
			walk(f, append(cur, f), left-1)
		}
	}
	for d := 1; d <= degree; d++ {
		walk(0, nil, d)
	}
	return terms
}

func termValue(row []float64, term []int) float64 {
	v := 1.0
	for _, f := range term {
		v *= row[f]
	}
	return v
}
