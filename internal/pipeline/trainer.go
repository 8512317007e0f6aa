package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Config describes one training run.
type Config struct {
	Algorithm      ml.Algorithm
	Params         ml.Params
	TargetColumn   string
	FeatureColumns []string
	TrainRatio     float64
	Seed           int64
}

// ConfigFromExperiment builds the run configuration stored on exp.
func ConfigFromExperiment(exp *core.Experiment) (Config, error) {
	alg, err := ml.ParseAlgorithm(exp.Algorithm)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Algorithm:      alg,
		Params:         ml.Params(exp.Hyperparameters),
		TargetColumn:   exp.TargetColumn,
		FeatureColumns: exp.FeatureColumns,
		TrainRatio:     exp.TrainRatio,
		Seed:           exp.RandomSeed,
	}, nil
}

// Prepared is a dataset encoded for one run.
type Prepared struct {
	X      [][]float64
	Y      []float64
	Split  ml.Split
	Bundle *Bundle
	// Stratified reports whether the split preserved class shares.
	Stratified bool
}

// Result is the outcome of a successful training run.
type Result struct {
	Model   ml.Model
	Bundle  *Bundle
	Task    ml.Task
	Seconds float64

	Classification  *ml.ClassificationMetrics
	ConfusionMatrix [][]int
	ROC             *ml.ROC

	Regression  *ml.RegressionMetrics
	Residuals   []float64
	Predictions []float64
}

// Record converts r into the stored experiment result.
func (r *Result) Record(modelPath, bundlePath string) (*core.ExperimentResult, error) {
	rec := &core.ExperimentResult{
		TrainingTime:        r.Seconds,
		ModelPath:           modelPath,
		TransformationsPath: bundlePath,
	}
	var err error
	marshal := func(v any) json.RawMessage {
		if err != nil {
			return nil
		}
		var b []byte
		b, err = json.Marshal(v)
		return b
	}
	if r.Task == ml.Regression {
		rec.Metrics = marshal(r.Regression)
		rec.Residuals = marshal(core.Floats(r.Residuals))
		rec.Predictions = marshal(core.Floats(r.Predictions))
	} else {
		rec.Metrics = marshal(r.Classification)
		rec.ConfusionMatrix = marshal(r.ConfusionMatrix)
		if r.ROC != nil {
			rec.ROCData = marshal(r.ROC)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode training results: %w", err)
	}
	return rec, nil
}

// Trainer runs the training steps for one dataset table.
type Trainer struct {
	logger       *slog.Logger
	chaidEnabled bool
}

// NewTrainer creates a trainer. A nil logger discards output.
func NewTrainer(logger *slog.Logger, chaidEnabled bool) *Trainer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{logger: logger, chaidEnabled: chaidEnabled}
}

// Prepare encodes the features and target of t and splits the rows.
func (tr *Trainer) Prepare(t *core.Table, cfg Config) (*Prepared, error) {
	t, err := t.RenameColumns(strings.TrimSpace)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize column names: %w", err)
	}
	required := append(append([]string{}, cfg.FeatureColumns...), cfg.TargetColumn)
	if missing := t.MissingColumns(required); len(missing) > 0 {
		return nil, core.MissingColumnsError(missing)
	}
	if len(cfg.FeatureColumns) == 0 {
		return nil, core.Errorf(core.CategoryInvalidArgument, "at least one feature column is required")
	}

	bundle := fitBundle(t, cfg.FeatureColumns, cfg.TargetColumn, cfg.Algorithm)
	tr.logger.Info("features partitioned",
		"categorical", bundle.CategoricalColumns, "numerical", bundle.NumericalColumns)

	y, err := tr.target(t, cfg, bundle)
	if err != nil {
		return nil, err
	}
	X, err := bundle.Matrix(t, tr.logger)
	if err != nil {
		return nil, err
	}

	ratio := cfg.TrainRatio
	if ratio == 0 {
		ratio = ml.DefaultTrainRatio
	}
	p := &Prepared{X: X, Y: y, Bundle: bundle}
	if cfg.Algorithm.Task() == ml.Classification && ml.CanStratify(y) {
		p.Split, err = ml.StratifiedSplit(y, ratio, cfg.Seed)
		if err == nil {
			p.Stratified = true
		} else {
			tr.logger.Warn("stratified split failed, using a random split", "error", err)
		}
	}
	if !p.Stratified {
		p.Split, err = ml.ShuffleSplit(len(y), ratio, cfg.Seed)
		if err != nil {
			return nil, err
		}
	}
	tr.logger.Info("rows split", "train", len(p.Split.Train), "test", len(p.Split.Test), "stratified", p.Stratified)
	return p, nil
}

// target encodes the target column. Non-numeric classification targets are
// label encoded; regression targets are coerced and must all parse.
func (tr *Trainer) target(t *core.Table, cfg Config, bundle *Bundle) ([]float64, error) {
	col, _ := t.Column(cfg.TargetColumn)
	y := make([]float64, col.Len())

	if cfg.Algorithm.Task() == ml.Classification && !isNumericalKind(col.Kind) {
		labels := features.Stringify(col.Values, "nan")
		enc := features.FitLabelEncoder(labels)
		codes, _ := enc.Transform(labels)
		for i, c := range codes {
			y[i] = float64(c)
		}
		bundle.TargetEncoder = enc
		tr.logger.Info("target encoded", "classes", enc.Classes)
		return y, nil
	}

	if cfg.Algorithm.Task() == ml.Regression && !isNumericalKind(col.Kind) {
		tr.logger.Info("coercing target to numeric", "column", cfg.TargetColumn)
	}
	bad := 0
	for i, v := range col.Values {
		y[i] = numericCell(v)
		if math.IsNaN(y[i]) {
			bad++
		}
	}
	if bad > 0 {
		return nil, core.Errorf(core.CategoryInvalidTarget,
			"target column %q has %d missing or non-numeric values", cfg.TargetColumn, bad)
	}
	return y, nil
}

// Train prepares t, fits the configured model on the training rows and
// evaluates it on the test rows.
func (tr *Trainer) Train(ctx context.Context, t *core.Table, cfg Config) (*Result, error) {
	p, err := tr.Prepare(t, cfg)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := ml.New(cfg.Algorithm, cfg.Params, ml.Options{ChaidEnabled: tr.chaidEnabled, Logger: tr.logger})
	if err != nil {
		return nil, err
	}

	xTrain, yTrain := rows(p.X, p.Y, p.Split.Train)
	xTest, yTest := rows(p.X, p.Y, p.Split.Test)

	start := time.Now()
	if err := model.Fit(xTrain, yTrain); err != nil {
		return nil, fmt.Errorf("failed to fit %s: %w", cfg.Algorithm, err)
	}
	res := &Result{
		Model:   model,
		Bundle:  p.Bundle,
		Task:    cfg.Algorithm.Task(),
		Seconds: time.Since(start).Seconds(),
	}
	tr.logger.Info("model fitted", "algorithm", cfg.Algorithm, "seconds", res.Seconds)

	yPred := model.Predict(xTest)
	if res.Task == ml.Regression {
		m, residuals := ml.EvaluateRegression(yTest, yPred)
		res.Regression, res.Residuals, res.Predictions = &m, residuals, yPred
		tr.logger.Info("regression metrics", "mse", m.MSE, "rmse", m.RMSE, "r2", m.R2)
		return res, nil
	}

	m, cm := ml.EvaluateClassification(yTest, yPred)
	res.Classification, res.ConfusionMatrix = &m, cm
	if clf, ok := model.(ml.Classifier); ok {
		res.ROC = binaryROC(clf, xTest, yTest)
		if res.ROC != nil {
			auc := res.ROC.AUC
			res.Classification.AUC = &auc
		}
	}
	tr.logger.Info("classification metrics", "accuracy", m.Accuracy, "f1", m.F1)
	return res, nil
}

// binaryROC scores the second model class when the test target has exactly
// two classes. The larger test class is positive.
func binaryROC(clf ml.Classifier, X [][]float64, y []float64) *ml.ROC {
	if len(clf.Classes()) < 2 {
		return nil
	}
	hi := math.Inf(-1)
	distinct := map[float64]struct{}{}
	for _, v := range y {
		distinct[v] = struct{}{}
		hi = math.Max(hi, v)
	}
	if len(distinct) != 2 {
		return nil
	}
	proba := clf.PredictProba(X)
	scores := make([]float64, len(proba))
	for i, p := range proba {
		scores[i] = p[1]
	}
	return ml.ROCCurve(y, scores, hi)
}

func rows(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for k, i := range idx {
		xs[k], ys[k] = X[i], y[i]
	}
	return xs, ys
}
