package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/internal/pipeline"
	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// ExperimentRequest describes a new experiment.
type ExperimentRequest struct {
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	DatasetID       int64          `json:"dataset_id"`
	Algorithm       string         `json:"algorithm"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
	TargetColumn    string         `json:"target_column"`
	FeatureColumns  []string       `json:"feature_columns"`
	// TrainRatio defaults to ml.DefaultTrainRatio.
	TrainRatio float64 `json:"train_test_split,omitempty"`
	// RandomSeed defaults to ml.ModelSeed.
	RandomSeed *int64 `json:"random_state,omitempty"`
}

// CreateExperiment validates req against the dataset and stores a pending
// experiment.
func (e *Engine) CreateExperiment(_ context.Context, req ExperimentRequest) (*core.Experiment, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, core.Errorf(core.CategoryInvalidArgument, "experiment name is required")
	}
	ds, err := e.store.GetDataset(req.DatasetID)
	if err != nil {
		return nil, err
	}
	alg, err := ml.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	target := strings.TrimSpace(req.TargetColumn)
	if target == "" {
		return nil, core.Errorf(core.CategoryInvalidArgument, "target column is required")
	}
	if len(req.FeatureColumns) == 0 {
		return nil, core.Errorf(core.CategoryInvalidArgument, "at least one feature column is required")
	}
	known := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		known[i] = strings.TrimSpace(c)
	}
	features := make([]string, 0, len(req.FeatureColumns))
	var missing []string
	for _, c := range append([]string{target}, req.FeatureColumns...) {
		c = strings.TrimSpace(c)
		if !slices.Contains(known, c) && !slices.Contains(missing, c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, core.MissingColumnsError(missing)
	}
	for _, c := range req.FeatureColumns {
		c = strings.TrimSpace(c)
		if c == target {
			return nil, core.Errorf(core.CategoryInvalidTarget, "target column %q cannot also be a feature", target)
		}
		if !slices.Contains(features, c) {
			features = append(features, c)
		}
	}

	ratio := req.TrainRatio
	if ratio == 0 {
		ratio = ml.DefaultTrainRatio
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, core.Errorf(core.CategoryInvalidArgument, "train/test split must be between 0 and 1, got %g", ratio)
	}
	seed := int64(ml.ModelSeed)
	if req.RandomSeed != nil {
		seed = *req.RandomSeed
	}

	params := req.Hyperparameters
	if params == nil {
		params = map[string]any{}
	}
	if _, err := ml.New(alg, ml.Params(params), ml.Options{ChaidEnabled: e.chaidEnabled}); err != nil {
		return nil, err
	}

	exp := &core.Experiment{
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		DatasetID:       ds.ID,
		Algorithm:       string(alg),
		Hyperparameters: params,
		TargetColumn:    target,
		FeatureColumns:  features,
		TrainRatio:      ratio,
		RandomSeed:      seed,
	}
	if err := e.store.CreateExperiment(exp); err != nil {
		return nil, err
	}
	e.logger.Info("experiment created", "id", exp.ID, "dataset_id", ds.ID, "algorithm", alg)
	return exp, nil
}

// GetExperiment returns an experiment with its result when completed.
func (e *Engine) GetExperiment(_ context.Context, id int64) (*core.Experiment, error) {
	return e.store.GetExperiment(id)
}

// ListExperiments returns the experiments of a dataset, newest first. A
// zero datasetID lists every experiment.
func (e *Engine) ListExperiments(_ context.Context, datasetID int64) ([]*core.Experiment, error) {
	if datasetID != 0 {
		if _, err := e.store.GetDataset(datasetID); err != nil {
			return nil, err
		}
	}
	return e.store.ListExperiments(datasetID)
}

// StartTraining queues a pending experiment. It returns once the
// experiment is training. Runs execute while Run is active.
func (e *Engine) StartTraining(ctx context.Context, id int64) (*pipeline.Task, error) {
	return e.runner.Start(ctx, id)
}

// TrainAndWait starts training and blocks until the run finishes or ctx is
// done. It returns the stored experiment.
func (e *Engine) TrainAndWait(ctx context.Context, id int64) (*core.Experiment, error) {
	task, err := e.StartTraining(ctx, id)
	if err != nil {
		return nil, err
	}
	select {
	case <-task.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.store.GetExperiment(id)
}

// Predict runs a completed experiment's model over records.
func (e *Engine) Predict(ctx context.Context, id int64, records []map[string]any) (*pipeline.Prediction, error) {
	if len(records) == 0 {
		return nil, core.Errorf(core.CategoryInvalidArgument, "no input data provided")
	}
	t, err := pipeline.TableFromRecords(records)
	if err != nil {
		return nil, core.Wrap(core.CategoryInvalidArgument, err, "invalid input data")
	}
	return e.predictTable(ctx, id, t)
}

// PredictFile runs a completed experiment's model over the rows of a file.
func (e *Engine) PredictFile(ctx context.Context, id int64, path string) (*pipeline.Prediction, error) {
	format, err := adapter.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	t, err := e.readTable(ctx, path, format)
	if err != nil {
		return nil, err
	}
	return e.predictTable(ctx, id, t)
}

func (e *Engine) predictTable(_ context.Context, id int64, t *core.Table) (*pipeline.Prediction, error) {
	exp, err := e.completed(id)
	if err != nil {
		return nil, err
	}
	alg, model, err := e.artifacts.LoadModel(exp.Result.ModelPath)
	if err != nil {
		return nil, err
	}
	bundle, err := e.artifacts.LoadBundle(exp.Result.TransformationsPath)
	if err != nil {
		return nil, err
	}
	p, err := pipeline.Predict(alg, model, bundle, t, e.logger)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("prediction served", "experiment_id", id, "rows", t.NumRows())
	return p, nil
}

// ModelArtifact returns the download name and the path of a completed
// experiment's model blob.
func (e *Engine) ModelArtifact(_ context.Context, id int64) (name, path string, err error) {
	exp, err := e.completed(id)
	if err != nil {
		return "", "", err
	}
	name = strings.ReplaceAll(fmt.Sprintf("%s_%s_model%s", exp.Name, exp.Algorithm, filepath.Ext(exp.Result.ModelPath)), " ", "_")
	return name, exp.Result.ModelPath, nil
}

func (e *Engine) completed(id int64) (*core.Experiment, error) {
	exp, err := e.store.GetExperiment(id)
	if err != nil {
		return nil, err
	}
	if exp.Status != core.ExperimentCompleted || exp.Result == nil {
		return nil, core.Errorf(core.CategoryInvalidArgument, "experiment %d is %s, not completed", id, exp.Status)
	}
	if exp.Result.ModelPath == "" || exp.Result.TransformationsPath == "" {
		return nil, core.Errorf(core.CategoryNotFound, "experiment %d has no stored model", id)
	}
	return exp, nil
}

// Algorithms returns the algorithm catalog.
func (e *Engine) Algorithms() []ml.Info {
	return ml.Catalog()
}

// AlgorithmParams returns the hyperparameter ranges of an algorithm.
func (e *Engine) AlgorithmParams(algorithm string) (map[string]ml.ParamSpec, error) {
	alg, err := ml.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return alg.ParamRanges(), nil
}
