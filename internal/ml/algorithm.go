package ml

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// Algorithm identifies a model family.
type Algorithm string

// Model families.
const (
	KNN              Algorithm = "knn"
	DecisionTree     Algorithm = "decision_tree"
	C45              Algorithm = "c45"
	CHAID            Algorithm = "chaid"
	NaiveBayes       Algorithm = "naive_bayes"
	NeuralNetwork    Algorithm = "neural_network"
	LinearRegression Algorithm = "linear_regression"
)

// Task is the learning problem an algorithm solves.
type Task string

// Tasks.
const (
	Classification Task = "classification"
	Regression     Task = "regression"
)

// Info describes an algorithm in the catalog.
type Info struct {
	ID          Algorithm   `json:"id"`
	Name        string      `json:"name"`
	Type        Task        `json:"type"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"-"`
}

var catalog = []Info{
	{
		ID: KNN, Name: "K-Nearest Neighbors", Type: Classification,
		Description: "Instance-based learning algorithm using k nearest neighbors",
		Params: []ParamSpec{
			intParam("n_neighbors", 1, 20, 5, ""),
			selectParam("weights", []string{"uniform", "distance"}, "uniform", ""),
			selectParam("metric", []string{"euclidean", "manhattan"}, "euclidean", ""),
		},
	},
	{
		ID: DecisionTree, Name: "Decision Tree (CART)", Type: Classification,
		Description: "Classification and Regression Trees using Gini or Entropy",
		Params: []ParamSpec{
			intParam("max_depth", 1, 50, 5, "Maximum depth of the tree (leave empty for unlimited)"),
			intParam("min_samples_split", 2, 20, 2, "Minimum number of samples required to split an internal node"),
			intParam("min_samples_leaf", 1, 20, 1, "Minimum number of samples required to be at a leaf node"),
			selectParam("criterion", []string{"gini", "entropy"}, "gini", "Function to measure split quality: Gini impurity or Information Gain"),
		},
	},
	{
		ID: C45, Name: "C4.5 Decision Tree", Type: Classification,
		Description: "Decision tree using Information Gain (Entropy-based splitting)",
		Params: []ParamSpec{
			intParam("max_depth", 1, 50, 5, "Maximum depth of the tree (leave empty for unlimited)"),
			intParam("min_samples_split", 2, 20, 2, "Minimum number of samples required to split an internal node"),
			intParam("min_samples_leaf", 1, 20, 1, "Minimum number of samples required to be at a leaf node"),
			floatParam("min_impurity_decrease", 0, 0.5, 0, "A node will split if this split induces a decrease of impurity >= this value"),
		},
	},
	{
		ID: CHAID, Name: "CHAID Decision Tree", Type: Classification,
		Description: "Chi-squared Automatic Interaction Detection (statistical tree)",
		Params: []ParamSpec{
			intParam("max_depth", 2, 20, 5, "Maximum depth of the CHAID tree"),
			intParam("min_samples_split", 20, 100, 30, "Minimum samples required to split a node (CHAID typically needs more samples)"),
			intParam("min_samples_leaf", 5, 50, 10, "Minimum samples required in a leaf node"),
			floatParam("alpha_merge", 0.01, 0.1, 0.05, "Significance level for Chi-square test (merging categories)"),
		},
	},
	{
		ID: NaiveBayes, Name: "Naive Bayes", Type: Classification,
		Description: "Probabilistic classifier based on Bayes theorem",
		Params: []ParamSpec{
			selectParam("nb_type", []string{"gaussian", "multinomial", "bernoulli"}, "gaussian",
				"Gaussian: continuous features, Multinomial: discrete counts, Bernoulli: binary features"),
			floatParam("var_smoothing", 1e-12, 1e-6, 1e-9, "Portion of the largest variance added to variances for stability (Gaussian only)"),
			floatParam("alpha", 0.1, 10, 1, "Additive smoothing parameter (Multinomial & Bernoulli)"),
		},
	},
	{
		ID: NeuralNetwork, Name: "Neural Network (MLP)", Type: Classification,
		Description: "Multi-layer Perceptron with backpropagation",
		Params: []ParamSpec{
			{Name: "hidden_layers", Type: ParamText, Default: "100",
				Description: `Hidden layer sizes (comma-separated). Ex: "100" or "100,50" for 2 layers`},
			selectParam("activation", []string{"relu", "tanh", "logistic"}, "relu", "Activation function for hidden layers"),
			selectParam("learning_rate", []string{"constant", "adaptive"}, "constant", "Learning rate schedule"),
			floatParam("learning_rate_init", 0.0001, 0.1, 0.001, "Initial learning rate"),
			intParam("max_iter", 50, 1000, 200, "Maximum number of iterations"),
			floatParam("alpha", 0.00001, 0.01, 0.0001, "L2 penalty (regularization) parameter"),
		},
	},
	{
		ID: LinearRegression, Name: "Linear Regression", Type: Regression,
		Description: "Simple and multiple linear regression with polynomial support",
		Params: []ParamSpec{
			selectParam("regression_type", []string{"linear", "polynomial"}, "linear",
				"Linear: simple/multiple regression, Polynomial: polynomial features"),
			{Name: "fit_intercept", Type: ParamBoolean, Default: true, Description: "Whether to calculate the intercept"},
			intParam("degree", 2, 5, 2, "Degree of polynomial features (only for polynomial regression)"),
		},
	},
}

// Catalog returns every algorithm in display order.
func Catalog() []Info {
	return catalog
}

// ParseAlgorithm resolves an algorithm id.
func ParseAlgorithm(s string) (Algorithm, error) {
	id := Algorithm(strings.TrimSpace(s))
	for _, info := range catalog {
		if info.ID == id {
			return id, nil
		}
	}
	return "", core.Errorf(core.CategoryUnsupportedAlgorithm, "unsupported algorithm: %s", s)
}

// Describe returns the catalog entry of a.
func (a Algorithm) Describe() Info {
	for _, info := range catalog {
		if info.ID == a {
			return info
		}
	}
	return Info{ID: a}
}

// Task returns the learning problem of a.
func (a Algorithm) Task() Task {
	if a == LinearRegression {
		return Regression
	}
	return Classification
}

// ParamRanges returns the hyperparameter specs of a keyed by name.
func (a Algorithm) ParamRanges() map[string]ParamSpec {
	info := a.Describe()
	out := make(map[string]ParamSpec, len(info.Params))
	for _, p := range info.Params {
		out[p.Name] = p
	}
	return out
}

// Defaults returns the default hyperparameters of a.
func (a Algorithm) Defaults() Params {
	info := a.Describe()
	out := make(Params, len(info.Params))
	for _, p := range info.Params {
		out[p.Name] = p.Default
	}
	return out
}

// Options are runtime switches that affect model construction.
type Options struct {
	// ChaidEnabled selects the chi-squared tree for CHAID. When false a gini
	// decision tree with the CHAID size limits is used instead.
	ChaidEnabled bool
	Logger       *slog.Logger
}

// New builds an unfitted model of family a from params.
func New(a Algorithm, params Params, opts Options) (Model, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	switch a {
	case KNN:
		m := &KNNClassifier{K: 5, Weights: "uniform", Metric: "euclidean"}
		if err := decodeParams(a, params, m); err != nil {
			return nil, err
		}
		if err := oneOf(a, "weights", m.Weights, "uniform", "distance"); err != nil {
			return nil, err
		}
		if err := oneOf(a, "metric", m.Metric, "euclidean", "manhattan"); err != nil {
			return nil, err
		}
		if m.K < 1 {
			return nil, core.Errorf(core.CategoryInvalidArgument, "n_neighbors must be >= 1, got %d", m.K)
		}
		return m, nil

	case DecisionTree, C45:
		m := &DecisionTreeClassifier{MaxDepth: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1, Criterion: "gini"}
		if err := decodeParams(a, params, m); err != nil {
			return nil, err
		}
		if a == C45 {
			m.Criterion = "entropy"
		}
		if err := oneOf(a, "criterion", m.Criterion, "gini", "entropy"); err != nil {
			return nil, err
		}
		return m, m.validate()

	case CHAID:
		m := &CHAIDClassifier{MaxDepth: 5, MinSamplesSplit: 30, MinSamplesLeaf: 10, AlphaMerge: 0.05}
		if err := decodeParams(a, params, m); err != nil {
			return nil, err
		}
		if !opts.ChaidEnabled {
			logger.Warn("CHAID is disabled, using a gini decision tree approximation",
				"max_depth", m.MaxDepth, "min_samples_split", m.MinSamplesSplit, "min_samples_leaf", m.MinSamplesLeaf)
			tree := &DecisionTreeClassifier{
				MaxDepth:        m.MaxDepth,
				MinSamplesSplit: m.MinSamplesSplit,
				MinSamplesLeaf:  m.MinSamplesLeaf,
				Criterion:       "gini",
			}
			return tree, tree.validate()
		}
		return m, m.validate()

	case NaiveBayes:
		m := &NaiveBayesClassifier{Variant: "gaussian", VarSmoothing: 1e-9, Alpha: 1}
		if err := decodeParams(a, params, m); err != nil {
			return nil, err
		}
		// Unknown variants fall back to gaussian with default smoothing.
		if oneOf(a, "nb_type", m.Variant, "gaussian", "multinomial", "bernoulli") != nil {
			logger.Warn("unknown naive bayes variant, using gaussian", "nb_type", m.Variant)
			m.Variant, m.VarSmoothing = "gaussian", 1e-9
		}
		return m, nil

	case NeuralNetwork:
		var p struct {
			HiddenLayers     string  `param:"hidden_layers"`
			Activation       string  `param:"activation"`
			LearningRate     string  `param:"learning_rate"`
			LearningRateInit float64 `param:"learning_rate_init"`
			MaxIter          int     `param:"max_iter"`
			Alpha            float64 `param:"alpha"`
		}
		p.HiddenLayers, p.Activation, p.LearningRate = "100", "relu", "constant"
		p.LearningRateInit, p.MaxIter, p.Alpha = 0.001, 200, 0.0001
		if err := decodeParams(a, params, &p); err != nil {
			return nil, err
		}
		sizes, err := parseHiddenLayers(p.HiddenLayers)
		if err != nil {
			return nil, err
		}
		if err := oneOf(a, "activation", p.Activation, "relu", "tanh", "logistic"); err != nil {
			return nil, err
		}
		if err := oneOf(a, "learning_rate", p.LearningRate, "constant", "adaptive"); err != nil {
			return nil, err
		}
		return &MLPClassifier{
			HiddenSizes:        sizes,
			Activation:         p.Activation,
			LearningRate:       p.LearningRate,
			LearningRateInit:   p.LearningRateInit,
			MaxIter:            p.MaxIter,
			Alpha:              p.Alpha,
			ValidationFraction: 0.1,
			EarlyStopping:      true,
		}, nil

	case LinearRegression:
		m := &LinearRegressor{Kind: "linear", FitIntercept: true, Degree: 2}
		if err := decodeParams(a, params, m); err != nil {
			return nil, err
		}
		if err := oneOf(a, "regression_type", m.Kind, "linear", "polynomial"); err != nil {
			return nil, err
		}
		if m.Kind == "linear" {
			m.Degree = 1
		} else if m.Degree < 1 {
			return nil, core.Errorf(core.CategoryInvalidArgument, "degree must be >= 1, got %d", m.Degree)
		}
		return m, nil
	}
	return nil, core.Errorf(core.CategoryUnsupportedAlgorithm, "unsupported algorithm: %s", a)
}

func parseHiddenLayers(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, core.Errorf(core.CategoryInvalidArgument, "invalid hidden_layers %q", s)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
