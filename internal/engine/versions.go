package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/internal/preprocess"
	"github.com/leapstack-labs/leapml/internal/transform"
	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// PreprocessRequest applies one remediation action to a dataset.
type PreprocessRequest struct {
	preprocess.Request
	// CreateNewVersion writes the result as a new active version instead of
	// overwriting the active file.
	CreateNewVersion bool `json:"create_new_version"`
	// OutputFormat defaults to the dataset's format. ARFF is written as CSV.
	OutputFormat core.Format `json:"output_format,omitempty"`
}

// Written describes where a transformed table was stored.
type Written struct {
	Dataset *core.Dataset
	// Version is set when a new version was created.
	Version *core.DatasetVersion
	// Format is the format actually written.
	Format core.Format
	// FormatSubstituted reports that the requested format could not be
	// written and Format was used instead.
	FormatSubstituted bool
}

// PreprocessOutcome is the result of PreprocessDataset.
type PreprocessOutcome struct {
	*preprocess.Result
	Written
}

// PreprocessDataset applies req to the active file of a dataset and stores
// the result.
func (e *Engine) PreprocessDataset(ctx context.Context, id int64, req PreprocessRequest) (*PreprocessOutcome, error) {
	ds, err := e.store.GetDataset(id)
	if err != nil {
		return nil, err
	}
	t, err := e.loadFile(ctx, ds)
	if err != nil {
		return nil, err
	}
	res, err := e.preprocess.Apply(t, req.Request)
	if err != nil {
		return nil, err
	}

	format, substituted := adapter.OutputFormat(ds.Format, req.OutputFormat)
	out := &PreprocessOutcome{Result: res}
	if req.CreateNewVersion {
		doc := map[string]any{
			"type":    "preprocessing",
			"request": req.Request,
			"result":  res,
		}
		desc := fmt.Sprintf("Preprocessing: %s on %s", req.Action, req.Column)
		out.Written, err = e.writeVersion(ctx, ds, res.Table, format, desc, doc)
	} else {
		out.Written, err = e.overwrite(ctx, ds, res.Table, format)
	}
	if err != nil {
		return nil, err
	}
	out.FormatSubstituted = substituted
	e.logger.Info("dataset preprocessed", "dataset_id", id, "action", req.Action, "column", req.Column, "message", res.Message)
	return out, nil
}

// NormalizeRequest scales numeric columns of a dataset.
type NormalizeRequest struct {
	Columns      []string              `json:"columns"`
	Method       features.ScalerMethod `json:"method"`
	FeatureRange *[2]float64           `json:"feature_range,omitempty"`
}

// NormalizeOutcome is the result of NormalizeDataset.
type NormalizeOutcome struct {
	Info *transform.NormalizationInfo
	Written
}

// NormalizeDataset normalizes columns and stores the result as a new
// version.
func (e *Engine) NormalizeDataset(ctx context.Context, id int64, req NormalizeRequest) (*NormalizeOutcome, error) {
	ds, session, err := e.session(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := session.Normalize(transform.NormalizeOptions{
		Columns:      req.Columns,
		Method:       req.Method,
		FeatureRange: req.FeatureRange,
	})
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Normalization: %s on %s", info.MethodName, strings.Join(info.Columns, ", "))
	w, err := e.writeVersion(ctx, ds, session.Table(), core.FormatCSV, desc, history(session))
	if err != nil {
		return nil, err
	}
	return &NormalizeOutcome{Info: info, Written: w}, nil
}

// EncodeRequest encodes categorical columns of a dataset.
type EncodeRequest struct {
	Columns   []string               `json:"columns"`
	Method    transform.EncodeMethod `json:"method"`
	DropFirst bool                   `json:"drop_first"`
}

// EncodeOutcome is the result of EncodeDataset.
type EncodeOutcome struct {
	Info *transform.EncodingInfo
	Written
}

// EncodeDataset encodes columns and stores the result as a new version.
func (e *Engine) EncodeDataset(ctx context.Context, id int64, req EncodeRequest) (*EncodeOutcome, error) {
	ds, session, err := e.session(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := session.Encode(transform.EncodeOptions{
		Columns:   req.Columns,
		Method:    req.Method,
		DropFirst: req.DropFirst,
	})
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Encoding: %s on %s", info.Method, strings.Join(info.Columns, ", "))
	w, err := e.writeVersion(ctx, ds, session.Table(), core.FormatCSV, desc, history(session))
	if err != nil {
		return nil, err
	}
	return &EncodeOutcome{Info: info, Written: w}, nil
}

// PreviewNormalize projects a normalization over a row sample of a dataset.
func (e *Engine) PreviewNormalize(ctx context.Context, id int64, req NormalizeRequest, sampleSize int) (*transform.NormalizationPreview, error) {
	t, err := e.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := transform.NormalizeOptions{Columns: req.Columns, Method: req.Method, FeatureRange: req.FeatureRange}
	return transform.PreviewNormalize(t, opts, sampleSize, uint64(id))
}

// PreviewEncode projects an encoding of a dataset.
func (e *Engine) PreviewEncode(ctx context.Context, id int64, req EncodeRequest) (*transform.EncodingPreview, error) {
	t, err := e.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return transform.PreviewEncode(t, transform.EncodeOptions{Columns: req.Columns, Method: req.Method, DropFirst: req.DropFirst})
}

// ListVersions returns the versions of a dataset, newest first.
func (e *Engine) ListVersions(_ context.Context, datasetID int64) ([]*core.DatasetVersion, error) {
	if _, err := e.store.GetDataset(datasetID); err != nil {
		return nil, err
	}
	return e.store.ListVersions(datasetID)
}

// ActivateVersion makes a version of the dataset active and refreshes the
// dataset's shape from its file.
func (e *Engine) ActivateVersion(ctx context.Context, datasetID, versionID int64) (*core.DatasetVersion, error) {
	versions, err := e.ListVersions(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(versions, func(v *core.DatasetVersion) bool { return v.ID == versionID }) {
		return nil, core.Errorf(core.CategoryNotFound, "version %d not found for dataset %d", versionID, datasetID)
	}
	v, err := e.store.ActivateVersion(versionID)
	if err != nil {
		return nil, err
	}
	ds, err := e.store.GetDataset(datasetID)
	if err != nil {
		return nil, err
	}
	t, err := e.loadFile(ctx, ds)
	if err != nil {
		return nil, err
	}
	if err := e.refresh(ds, t); err != nil {
		return nil, err
	}
	e.logger.Info("version activated", "dataset_id", datasetID, "version", v.VersionNumber)
	return v, nil
}

func (e *Engine) session(ctx context.Context, id int64) (*core.Dataset, *transform.Session, error) {
	ds, err := e.store.GetDataset(id)
	if err != nil {
		return nil, nil, err
	}
	t, err := e.loadFile(ctx, ds)
	if err != nil {
		return nil, nil, err
	}
	return ds, transform.NewSession(t), nil
}

// history encodes the records of a session as the version's transformations.
func history(s *transform.Session) any {
	records := s.History()
	if len(records) == 1 {
		return records[0].Info()
	}
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Info()
	}
	return out
}

// writeVersion writes t beside the dataset's file as <name>_v<unix-millis>
// and records it as the new active version. The file is removed when the
// metadata cannot be stored.
func (e *Engine) writeVersion(ctx context.Context, ds *core.Dataset, t *core.Table, format core.Format, desc string, transformations any) (Written, error) {
	doc, err := json.Marshal(transformations)
	if err != nil {
		return Written{}, fmt.Errorf("failed to encode transformations: %w", err)
	}
	format, substituted := adapter.OutputFormat(ds.Format, format)
	path := versionPath(ds, format, time.Now().UnixMilli())
	if err := e.writeTable(ctx, t, path, format); err != nil {
		return Written{}, err
	}

	v := &core.DatasetVersion{
		DatasetID:       ds.ID,
		FilePath:        path,
		Format:          format,
		Description:     desc,
		Transformations: doc,
	}
	if err := e.store.CreateVersion(v); err != nil {
		_ = os.Remove(path)
		return Written{}, fmt.Errorf("failed to record version: %w", err)
	}
	ds.FilePath, ds.Format = path, format
	if err := e.refresh(ds, t); err != nil {
		return Written{}, err
	}
	e.logger.Info("dataset version created", "dataset_id", ds.ID, "version", v.VersionNumber, "path", path)
	return Written{Dataset: ds, Version: v, Format: format, FormatSubstituted: substituted}, nil
}

// overwrite replaces the active file of a dataset. A format change moves the
// data to a file with the matching extension.
func (e *Engine) overwrite(ctx context.Context, ds *core.Dataset, t *core.Table, format core.Format) (Written, error) {
	path := adapter.OutputPath(ds.FilePath, format)
	if err := e.writeTable(ctx, t, path, format); err != nil {
		return Written{}, err
	}
	ds.FilePath, ds.Format = path, format
	if err := e.refresh(ds, t); err != nil {
		return Written{}, err
	}
	return Written{Dataset: ds, Format: format}, nil
}

func (e *Engine) writeTable(ctx context.Context, t *core.Table, path string, format core.Format) error {
	w, err := e.ensureReader(ctx)
	if err != nil {
		return err
	}
	if err := w.Write(ctx, t, path, format); err != nil {
		return err
	}
	if abs, err := filepath.Abs(path); err == nil {
		e.cache.invalidate(abs)
	}
	return nil
}

// refresh stores the shape of t as the dataset's current shape.
func (e *Engine) refresh(ds *core.Dataset, t *core.Table) error {
	if err := describeInto(ds, t); err != nil {
		return err
	}
	if info, err := os.Stat(ds.FilePath); err == nil {
		ds.FileSize = info.Size()
	}
	return e.store.UpdateDataset(ds)
}

// versionPath names a version file beside the dataset's file, moving past
// the millisecond stamp of a file that already exists.
func versionPath(ds *core.Dataset, format core.Format, millis int64) string {
	dir := filepath.Dir(ds.FilePath)
	for {
		path := filepath.Join(dir, fmt.Sprintf("%s_v%d.%s", fileStem(ds.Name), millis, format))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		millis++
	}
}

func fileStem(name string) string {
	r := strings.NewReplacer(" ", "_", "/", "_", `\`, "_")
	return r.Replace(strings.TrimSpace(name))
}
