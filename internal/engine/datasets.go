package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Preview defaults.
const (
	DefaultPreviewLimit = 100
	MaxPreviewLimit     = 1000
)

// ImportDataset stores the contents of r under DataDir, decodes it and
// registers it as a new dataset with the file as version 1. The format is
// taken from filename's extension. An empty name defaults to the file stem.
func (e *Engine) ImportDataset(ctx context.Context, name, filename string, r io.Reader) (*core.Dataset, error) {
	base := filepath.Base(filename)
	format, err := adapter.FormatFromPath(base)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	dest := filepath.Join(e.dataDir, fmt.Sprintf("%s_%s", uuid.NewString()[:8], base))
	size, err := copyInto(dest, r)
	if err != nil {
		return nil, err
	}

	ds, err := e.register(ctx, name, base, dest, format, size)
	if err != nil {
		_ = os.Remove(dest)
		return nil, err
	}
	e.logger.Info("dataset registered", "id", ds.ID, "name", ds.Name, "rows", ds.RowsCount, "columns", ds.ColumnsCount)
	return ds, nil
}

// AddDataset imports the file at path.
func (e *Engine) AddDataset(ctx context.Context, name, path string) (*core.Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is given by the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.Errorf(core.CategoryNotFound, "file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return e.ImportDataset(ctx, name, path, f)
}

func (e *Engine) register(ctx context.Context, name, filename, path string, format core.Format, size int64) (*core.Dataset, error) {
	t, err := e.readTable(ctx, path, format)
	if err != nil {
		return nil, err
	}
	ds := &core.Dataset{
		Name:     name,
		Filename: filename,
		FilePath: path,
		Format:   format,
		FileSize: size,
		Status:   "ready",
	}
	if err := describeInto(ds, t); err != nil {
		return nil, err
	}
	if err := e.store.CreateDataset(ds); err != nil {
		return nil, err
	}
	original := &core.DatasetVersion{
		DatasetID:   ds.ID,
		FilePath:    path,
		Format:      format,
		Description: "Original upload",
	}
	if err := e.store.CreateVersion(original); err != nil {
		return nil, err
	}
	return ds, nil
}

// GetDataset returns dataset metadata.
func (e *Engine) GetDataset(_ context.Context, id int64) (*core.Dataset, error) {
	return e.store.GetDataset(id)
}

// ListDatasets returns every dataset.
func (e *Engine) ListDatasets(_ context.Context) ([]*core.Dataset, error) {
	return e.store.ListDatasets()
}

// LoadDataset decodes the active file of a dataset. It implements
// pipeline.DatasetLoader.
func (e *Engine) LoadDataset(ctx context.Context, datasetID int64) (*core.Table, error) {
	ds, err := e.store.GetDataset(datasetID)
	if err != nil {
		return nil, err
	}
	return e.loadFile(ctx, ds)
}

func (e *Engine) loadFile(ctx context.Context, ds *core.Dataset) (*core.Table, error) {
	path, format, err := adapter.ResolveSource(ds.FilePath, ds.Format)
	if err != nil {
		return nil, err
	}
	return e.readTable(ctx, path, format)
}

// readTable decodes a file through the cache.
func (e *Engine) readTable(ctx context.Context, path string, format core.Format) (*core.Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if t, ok := e.cache.get(abs); ok {
		return t, nil
	}
	r, err := e.ensureReader(ctx)
	if err != nil {
		return nil, err
	}
	t, err := r.Read(ctx, abs, format)
	if err != nil {
		return nil, err
	}
	e.cache.put(abs, t)
	return t, nil
}

// PreviewPage is one page of dataset rows.
type PreviewPage struct {
	Columns   []string         `json:"columns"`
	Data      []map[string]any `json:"data"`
	TotalRows int              `json:"total_rows"`
	Offset    int              `json:"offset"`
	Limit     int              `json:"limit"`
}

// PreviewDataset returns up to limit rows from offset. A zero limit means
// DefaultPreviewLimit.
func (e *Engine) PreviewDataset(ctx context.Context, id int64, limit, offset int) (*PreviewPage, error) {
	if limit == 0 {
		limit = DefaultPreviewLimit
	}
	if limit < 0 || limit > MaxPreviewLimit || offset < 0 {
		return nil, core.Errorf(core.CategoryInvalidArgument,
			"limit must be between 1 and %d and offset must not be negative", MaxPreviewLimit)
	}
	t, err := e.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PreviewPage{
		Columns:   t.ColumnNames(),
		Data:      t.Slice(offset, limit).Records(),
		TotalRows: t.NumRows(),
		Offset:    offset,
		Limit:     limit,
	}, nil
}

// DatasetStatistics returns the basic info of the named columns, or of all
// columns when none are named.
func (e *Engine) DatasetStatistics(ctx context.Context, id int64, columns []string) ([]profile.ColumnInfo, error) {
	t, err := e.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(columns) > 0 {
		if t, err = t.Select(columns); err != nil {
			return nil, err
		}
	}
	return profile.DescribeTable(t), nil
}

// AnalyzeRequest configures a full profiling pass.
type AnalyzeRequest struct {
	Columns       []string               `json:"columns,omitempty"`
	MissingTokens []string               `json:"custom_missing_values,omitempty"`
	ColumnConfigs []profile.ColumnConfig `json:"column_configs,omitempty"`
	// DetectOutliers overrides the engine default when set.
	DetectOutliers *bool `json:"detect_outliers,omitempty"`
}

// Analysis is the result of AnalyzeDataset.
type Analysis struct {
	DatasetID int64                    `json:"dataset_id"`
	Profiles  []*profile.ColumnProfile `json:"column_analyses"`
	Summary   profile.AnalysisSummary  `json:"summary"`
}

// AnalyzeDataset profiles a dataset. Configured missing tokens are added to
// the request's.
func (e *Engine) AnalyzeDataset(ctx context.Context, id int64, req AnalyzeRequest) (*Analysis, error) {
	t, err := e.LoadDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	detect := e.detectOutliers
	if req.DetectOutliers != nil {
		detect = *req.DetectOutliers
	}
	profiles, summary, err := e.profiler.Analyze(t, profile.Options{
		Columns:        req.Columns,
		MissingTokens:  append(append([]string{}, e.missingTokens...), req.MissingTokens...),
		DetectOutliers: detect,
		ColumnConfigs:  req.ColumnConfigs,
	})
	if err != nil {
		return nil, err
	}
	return &Analysis{DatasetID: id, Profiles: profiles, Summary: summary}, nil
}

// describeInto stores the shape and column info of t on ds.
func describeInto(ds *core.Dataset, t *core.Table) error {
	infos := profile.DescribeTable(t)
	fields := make([]core.Field, len(infos))
	for i, info := range infos {
		fields[i] = core.Field{Key: info.Name, Value: info}
	}
	raw, err := core.MarshalObject(fields...)
	if err != nil {
		return fmt.Errorf("failed to encode column info: %w", err)
	}
	ds.RowsCount = t.NumRows()
	ds.ColumnsCount = t.NumCols()
	ds.Columns = t.ColumnNames()
	ds.ColumnsInfo = json.RawMessage(raw)
	return nil
}

func copyInto(dest string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: dest is built under DataDir
	if err != nil {
		return 0, core.Wrap(core.CategoryStorageUnavailable, err, "failed to create %s", filepath.Base(dest))
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return 0, core.Wrap(core.CategoryStorageUnavailable, err, "failed to store %s", filepath.Base(dest))
	}
	return n, nil
}
