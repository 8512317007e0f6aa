package core

import (
	"encoding/json"
	"time"
)

// Store defines the interface for metadata persistence.
// Lookups of absent records return an error matching ErrNotFound.
type Store interface {
	Open(dsn string) error
	Close() error
	InitSchema() error

	// Dataset operations
	CreateDataset(ds *Dataset) error
	GetDataset(id int64) (*Dataset, error)
	ListDatasets() ([]*Dataset, error)
	UpdateDataset(ds *Dataset) error

	// Version operations
	CreateVersion(v *DatasetVersion) error
	ListVersions(datasetID int64) ([]*DatasetVersion, error)
	ActivateVersion(versionID int64) (*DatasetVersion, error)

	// Experiment operations
	CreateExperiment(exp *Experiment) error
	GetExperiment(id int64) (*Experiment, error)
	ListExperiments(datasetID int64) ([]*Experiment, error)
	// StartExperiment moves a pending experiment to training. It fails
	// with AlreadyInProgress or AlreadyFinished when another caller got
	// there first.
	StartExperiment(id int64) error
	CompleteExperiment(id int64, result *ExperimentResult) error
	FailExperiment(id int64, errMsg string) error
}

// Dataset is a registered tabular file.
type Dataset struct {
	ID           int64
	Name         string
	Filename     string
	FilePath     string
	Format       Format
	FileSize     int64
	RowsCount    int
	ColumnsCount int
	Columns      []string
	ColumnsInfo  json.RawMessage
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DatasetVersion is one file of a dataset. Exactly one version of a dataset
// is active at a time and the dataset's FilePath points at it. Creating or
// activating a version repoints the dataset.
type DatasetVersion struct {
	ID              int64
	DatasetID       int64
	VersionNumber   int
	FilePath        string
	Format          Format
	Description     string
	Transformations json.RawMessage
	IsActive        bool
	CreatedAt       time.Time
}

// ExperimentStatus represents the training state of an experiment.
type ExperimentStatus string

// Experiment status constants.
const (
	ExperimentPending   ExperimentStatus = "pending"
	ExperimentTraining  ExperimentStatus = "training"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentFailed    ExperimentStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s ExperimentStatus) IsTerminal() bool {
	return s == ExperimentCompleted || s == ExperimentFailed
}

// CheckStart returns nil when experiment id, currently in status s, may
// start training, and an AlreadyInProgress or AlreadyFinished error
// otherwise.
func (s ExperimentStatus) CheckStart(id int64) error {
	switch s {
	case ExperimentTraining:
		return Errorf(CategoryAlreadyInProgress, "experiment %d is already training", id)
	case ExperimentCompleted, ExperimentFailed:
		return Errorf(CategoryAlreadyFinished,
			"experiment %d is already %s, create a new experiment to retrain", id, s)
	}
	return nil
}

// Experiment is one training configuration over a dataset.
type Experiment struct {
	ID              int64
	Name            string
	Description     string
	DatasetID       int64
	Algorithm       string
	Hyperparameters map[string]any
	TargetColumn    string
	FeatureColumns  []string
	TrainRatio      float64
	RandomSeed      int64
	Status          ExperimentStatus
	Result          *ExperimentResult
	ErrorMessage    string
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// ExperimentResult holds the outputs of a completed training run.
// The JSON documents are stored verbatim.
type ExperimentResult struct {
	Metrics             json.RawMessage
	ConfusionMatrix     json.RawMessage
	ROCData             json.RawMessage
	Residuals           json.RawMessage
	Predictions         json.RawMessage
	TrainingTime        float64
	ModelPath           string
	TransformationsPath string
}
