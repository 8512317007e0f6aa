package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func TestParseAlgorithm(t *testing.T) {
	for _, info := range Catalog() {
		a, err := ParseAlgorithm(string(info.ID))
		require.NoError(t, err)
		assert.Equal(t, info.ID, a)
	}

	_, err := ParseAlgorithm("random_forest")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnsupportedAlgorithm))
}

func TestAlgorithm_Task(t *testing.T) {
	assert.Equal(t, Regression, LinearRegression.Task())
	assert.Equal(t, Classification, KNN.Task())
	assert.Len(t, Catalog(), 7)
}

func TestAlgorithm_Defaults(t *testing.T) {
	d := NeuralNetwork.Defaults()
	assert.Equal(t, "100", d["hidden_layers"])
	assert.Equal(t, 200, d["max_iter"])

	r := CHAID.ParamRanges()
	require.Contains(t, r, "alpha_merge")
	assert.Equal(t, 0.05, r["alpha_merge"].Default)
	assert.Equal(t, 0.01, *r["alpha_merge"].Min)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		alg     Algorithm
		params  Params
		opts    Options
		check   func(t *testing.T, m Model)
		wantErr error
	}{
		{
			name:   "knn from string params",
			alg:    KNN,
			params: Params{"n_neighbors": "3", "weights": "distance"},
			check: func(t *testing.T, m Model) {
				knn := m.(*KNNClassifier)
				assert.Equal(t, 3, knn.K)
				assert.Equal(t, "distance", knn.Weights)
				assert.Equal(t, "euclidean", knn.Metric)
			},
		},
		{
			name:    "knn bad metric",
			alg:     KNN,
			params:  Params{"metric": "cosine"},
			wantErr: core.ErrInvalidArgument,
		},
		{
			name:   "c45 always uses entropy",
			alg:    C45,
			params: Params{"criterion": "gini", "max_depth": 3.0},
			check: func(t *testing.T, m Model) {
				tree := m.(*DecisionTreeClassifier)
				assert.Equal(t, "entropy", tree.Criterion)
				assert.Equal(t, 3, tree.MaxDepth)
			},
		},
		{
			name: "chaid enabled",
			alg:  CHAID,
			opts: Options{ChaidEnabled: true},
			check: func(t *testing.T, m Model) {
				assert.IsType(t, &CHAIDClassifier{}, m)
			},
		},
		{
			name:   "chaid disabled falls back to gini tree",
			alg:    CHAID,
			params: Params{"max_depth": 4},
			check: func(t *testing.T, m Model) {
				tree := m.(*DecisionTreeClassifier)
				assert.Equal(t, "gini", tree.Criterion)
				assert.Equal(t, 4, tree.MaxDepth)
				assert.Equal(t, 30, tree.MinSamplesSplit)
			},
		},
		{
			name:   "unknown naive bayes variant is gaussian",
			alg:    NaiveBayes,
			params: Params{"nb_type": "complement"},
			check: func(t *testing.T, m Model) {
				assert.Equal(t, "gaussian", m.(*NaiveBayesClassifier).Variant)
			},
		},
		{
			name:   "mlp hidden layers",
			alg:    NeuralNetwork,
			params: Params{"hidden_layers": "100, 50"},
			check: func(t *testing.T, m Model) {
				mlp := m.(*MLPClassifier)
				assert.Equal(t, []int{100, 50}, mlp.HiddenSizes)
				assert.True(t, mlp.EarlyStopping)
				assert.Equal(t, 0.1, mlp.ValidationFraction)
			},
		},
		{
			name:    "mlp bad hidden layers",
			alg:     NeuralNetwork,
			params:  Params{"hidden_layers": "100,x"},
			wantErr: core.ErrInvalidArgument,
		},
		{
			name:   "linear ignores degree",
			alg:    LinearRegression,
			params: Params{"degree": 4},
			check: func(t *testing.T, m Model) {
				assert.Equal(t, 1, m.(*LinearRegressor).Degree)
			},
		},
		{
			name:   "polynomial keeps degree",
			alg:    LinearRegression,
			params: Params{"regression_type": "polynomial", "degree": 3, "fit_intercept": "false"},
			check: func(t *testing.T, m Model) {
				lr := m.(*LinearRegressor)
				assert.Equal(t, 3, lr.Degree)
				assert.False(t, lr.FitIntercept)
			},
		},
		{
			name:    "unknown algorithm",
			alg:     Algorithm("svm"),
			wantErr: core.ErrUnsupportedAlgorithm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = testutil.NewTestLogger(t)
			m, err := New(tt.alg, tt.params, tt.opts)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
				return
			}
			require.NoError(t, err)
			tt.check(t, m)
		})
	}
}
