package datasets

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/preprocess"
	"github.com/leapstack-labs/leapml/internal/transform"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Dataset is the API view of a dataset.
type Dataset struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Filename     string          `json:"filename"`
	FilePath     string          `json:"file_path"`
	FileFormat   core.Format     `json:"file_format"`
	FileSize     int64           `json:"file_size"`
	RowsCount    int             `json:"rows_count"`
	ColumnsCount int             `json:"columns_count"`
	Columns      []string        `json:"columns"`
	ColumnsInfo  json.RawMessage `json:"columns_info,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func newDataset(ds *core.Dataset) Dataset {
	return Dataset{
		ID:           ds.ID,
		Name:         ds.Name,
		Filename:     ds.Filename,
		FilePath:     ds.FilePath,
		FileFormat:   ds.Format,
		FileSize:     ds.FileSize,
		RowsCount:    ds.RowsCount,
		ColumnsCount: ds.ColumnsCount,
		Columns:      ds.Columns,
		ColumnsInfo:  ds.ColumnsInfo,
		Status:       ds.Status,
		CreatedAt:    ds.CreatedAt,
		UpdatedAt:    ds.UpdatedAt,
	}
}

// Version is the API view of a dataset version.
type Version struct {
	ID              int64           `json:"id"`
	DatasetID       int64           `json:"dataset_id"`
	VersionNumber   int             `json:"version_number"`
	FilePath        string          `json:"file_path"`
	FileFormat      core.Format     `json:"file_format"`
	Description     string          `json:"description"`
	Transformations json.RawMessage `json:"transformations,omitempty"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newVersion(v *core.DatasetVersion) *Version {
	if v == nil {
		return nil
	}
	return &Version{
		ID:              v.ID,
		DatasetID:       v.DatasetID,
		VersionNumber:   v.VersionNumber,
		FilePath:        v.FilePath,
		FileFormat:      v.Format,
		Description:     v.Description,
		Transformations: v.Transformations,
		IsActive:        v.IsActive,
		CreatedAt:       v.CreatedAt,
	}
}

type statisticsRequest struct {
	Columns []string `json:"columns"`
}

type normalizeRequest struct {
	Columns      []string    `json:"columns"`
	Method       string      `json:"method"`
	FeatureRange *[2]float64 `json:"feature_range,omitempty"`
}

func (r normalizeRequest) toEngine() (engine.NormalizeRequest, error) {
	method, err := transform.ParseNormalizeMethod(r.Method)
	if err != nil {
		return engine.NormalizeRequest{}, err
	}
	return engine.NormalizeRequest{Columns: r.Columns, Method: method, FeatureRange: r.FeatureRange}, nil
}

type encodeRequest struct {
	Columns   []string `json:"columns"`
	Method    string   `json:"method"`
	DropFirst bool     `json:"drop_first"`
}

func (r encodeRequest) toEngine() (engine.EncodeRequest, error) {
	method, err := transform.ParseEncodeMethod(r.Method)
	if err != nil {
		return engine.EncodeRequest{}, err
	}
	return engine.EncodeRequest{Columns: r.Columns, Method: method, DropFirst: r.DropFirst}, nil
}

// written is shared by every response that stores a transformed table.
type written struct {
	Dataset           Dataset     `json:"dataset"`
	Version           *Version    `json:"version,omitempty"`
	OutputFormat      core.Format `json:"output_format"`
	FormatSubstituted bool        `json:"format_substituted"`
}

func newWritten(w engine.Written) written {
	return written{
		Dataset:           newDataset(w.Dataset),
		Version:           newVersion(w.Version),
		OutputFormat:      w.Format,
		FormatSubstituted: w.FormatSubstituted,
	}
}

type preprocessResponse struct {
	*preprocess.Result
	written
}

type normalizeResponse struct {
	Info *transform.NormalizationInfo `json:"normalization_info"`
	written
}

type encodeResponse struct {
	Info *transform.EncodingInfo `json:"encoding_info"`
	written
}
