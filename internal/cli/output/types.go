package output

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// DatasetInfo is the structured output of a dataset.
type DatasetInfo struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Filename     string      `json:"filename"`
	FilePath     string      `json:"file_path"`
	Format       core.Format `json:"file_format"`
	FileSize     int64       `json:"file_size"`
	RowsCount    int         `json:"rows_count"`
	ColumnsCount int         `json:"columns_count"`
	Columns      []string    `json:"columns"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewDatasetInfo converts a dataset record.
func NewDatasetInfo(ds *core.Dataset) DatasetInfo {
	return DatasetInfo{
		ID:           ds.ID,
		Name:         ds.Name,
		Filename:     ds.Filename,
		FilePath:     ds.FilePath,
		Format:       ds.Format,
		FileSize:     ds.FileSize,
		RowsCount:    ds.RowsCount,
		ColumnsCount: ds.ColumnsCount,
		Columns:      ds.Columns,
		Status:       ds.Status,
		CreatedAt:    ds.CreatedAt,
	}
}

// VersionInfo is the structured output of a dataset version.
type VersionInfo struct {
	ID              int64           `json:"id"`
	VersionNumber   int             `json:"version_number"`
	Format          core.Format     `json:"file_format"`
	FilePath        string          `json:"file_path"`
	Description     string          `json:"description"`
	Transformations json.RawMessage `json:"transformations,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewVersionInfo converts a version record.
func NewVersionInfo(v *core.DatasetVersion) VersionInfo {
	return VersionInfo{
		ID:              v.ID,
		VersionNumber:   v.VersionNumber,
		Format:          v.Format,
		FilePath:        v.FilePath,
		Description:     v.Description,
		Transformations: v.Transformations,
		IsActive:        v.IsActive,
		CreatedAt:       v.CreatedAt,
	}
}

// ExperimentInfo is the structured output of an experiment.
type ExperimentInfo struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	DatasetID       int64                 `json:"dataset_id"`
	Algorithm       string                `json:"algorithm"`
	Hyperparameters map[string]any        `json:"hyperparameters"`
	TargetColumn    string                `json:"target_column"`
	FeatureColumns  []string              `json:"feature_columns"`
	TrainRatio      float64               `json:"train_test_split"`
	RandomSeed      int64                 `json:"random_state"`
	Status          core.ExperimentStatus `json:"status"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	Metrics         json.RawMessage       `json:"metrics,omitempty"`
	ConfusionMatrix json.RawMessage       `json:"confusion_matrix,omitempty"`
	TrainingTime    *float64              `json:"training_time,omitempty"`
	ModelPath       string                `json:"model_path,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
}

// NewExperimentInfo converts an experiment record.
func NewExperimentInfo(exp *core.Experiment) ExperimentInfo {
	out := ExperimentInfo{
		ID:              exp.ID,
		Name:            exp.Name,
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
		out.TrainingTime = &seconds
		out.ModelPath = res.ModelPath
	}
	return out
}

// WrittenInfo reports where a transformed dataset was stored.
type WrittenInfo struct {
	Dataset           DatasetInfo  `json:"dataset"`
	Version           *VersionInfo `json:"new_version,omitempty"`
	Format            core.Format  `json:"output_format"`
	FormatSubstituted bool         `json:"format_substituted,omitempty"`
}

// NewWrittenInfo converts the storage side of a transformation.
func NewWrittenInfo(ds *core.Dataset, v *core.DatasetVersion, format core.Format, substituted bool) WrittenInfo {
	out := WrittenInfo{Dataset: NewDatasetInfo(ds), Format: format, FormatSubstituted: substituted}
	if v != nil {
		vi := NewVersionInfo(v)
		out.Version = &vi
	}
	return out
}
