package experiments

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Experiment is the API view of an experiment. Result fields are present
// once the experiment completed.
type Experiment struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	DatasetID       int64                 `json:"dataset_id"`
	Algorithm       string                `json:"algorithm"`
	Hyperparameters map[string]any        `json:"hyperparameters"`
	TargetColumn    string                `json:"target_column"`
	FeatureColumns  []string              `json:"feature_columns"`
	TrainRatio      float64               `json:"train_test_split"`
	RandomSeed      int64                 `json:"random_state"`
	Status          core.ExperimentStatus `json:"status"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`

	Metrics             json.RawMessage `json:"metrics,omitempty"`
	ConfusionMatrix     json.RawMessage `json:"confusion_matrix,omitempty"`
	ROCData             json.RawMessage `json:"roc_data,omitempty"`
	Residuals           json.RawMessage `json:"residuals,omitempty"`
	Predictions         json.RawMessage `json:"predictions,omitempty"`
	TrainingTime        *float64        `json:"training_time,omitempty"`
	ModelPath           string          `json:"model_path,omitempty"`
	TransformationsPath string          `json:"transformations_path,omitempty"`
}

func newExperiment(exp *core.Experiment) Experiment {
	out := Experiment{
		ID:              exp.ID,
		Name:            exp.Name,
		Description:     exp.Description,
		DatasetID:       exp.DatasetID,
		Algorithm:       exp.Algorithm,
		Hyperparameters: exp.Hyperparameters,
		TargetColumn:    exp.TargetColumn,
		FeatureColumns:  exp.FeatureColumns,
		TrainRatio:      exp.TrainRatio,
		RandomSeed:      exp.RandomSeed,
		Status:          exp.Status,
		ErrorMessage:    exp.ErrorMessage,
		CreatedAt:       exp.CreatedAt,
		CompletedAt:     exp.CompletedAt,
	}
	if res := exp.Result; res != nil {
		seconds := res.TrainingTime
		out.Metrics = res.Metrics
		out.ConfusionMatrix = res.ConfusionMatrix
		out.ROCData = res.ROCData
		out.Residuals = res.Residuals
		out.Predictions = res.Predictions
		out.TrainingTime = &seconds
		out.ModelPath = res.ModelPath
		out.TransformationsPath = res.TransformationsPath
	}
	return out
}

// statusSignals are the datastar signals pushed on the event stream.
type statusSignals struct {
	ExperimentID int64                 `json:"experiment_id"`
	Status       core.ExperimentStatus `json:"status"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

type predictRequest struct {
	Data []map[string]any `json:"data"`
}

type trainResponse struct {
	ID     int64                 `json:"id"`
	Status core.ExperimentStatus `json:"status"`
}

type paramsResponse struct {
	Algorithm ml.Algorithm            `json:"algorithm"`
	Params    map[string]ml.ParamSpec `json:"params"`
}
