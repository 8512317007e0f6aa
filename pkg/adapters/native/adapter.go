// Package native provides a pure-Go dataset adapter for CSV, JSON and ARFF
// files. It needs no embedded engine and is the reader of last resort for
// ARFF, which no SQL engine decodes.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Adapter implements core.Adapter with the standard library codecs.
type Adapter struct {
	cfg    core.AdapterConfig
	logger *slog.Logger
	nulls  map[string]bool
}

// New creates a new native adapter. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger, nulls: tokenSet(adapter.DefaultNullTokens)}
}

// Connect records the configuration. There is no connection to establish.
func (a *Adapter) Connect(_ context.Context, cfg core.AdapterConfig) error {
	a.cfg = cfg
	return nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

// Read decodes the file at path.
func (a *Adapter) Read(_ context.Context, path string, format core.Format) (*core.Table, error) {
	resolved, actual, err := adapter.ResolveSource(path, format)
	if err != nil {
		return nil, err
	}
	if resolved != path {
		a.logger.Info("ARFF not found, using CSV", "path", resolved)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", resolved, err)
	}
	defer func() { _ = f.Close() }()

	var t *core.Table
	switch actual {
	case core.FormatCSV:
		t, err = ReadCSV(f, a.nulls)
	case core.FormatJSON:
		t, err = ReadJSON(f)
	case core.FormatARFF:
		t, err = ReadARFF(f)
	default:
		return nil, core.Errorf(core.CategoryInvalidArgument, "unsupported file format: %s", actual)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(resolved), err)
	}
	a.logger.Debug("dataset read", "path", resolved, "rows", t.NumRows(), "columns", t.NumCols())
	return t, nil
}

// Write encodes the table to path.
func (a *Adapter) Write(_ context.Context, t *core.Table, path string, format core.Format) error {
	if format == core.FormatARFF {
		return core.Errorf(core.CategoryInvalidArgument, "arff output is not supported")
	}

	f, err := os.Create(path)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create %s", path)
	}

	switch format {
	case core.FormatCSV:
		err = WriteCSV(f, t)
	case core.FormatJSON:
		err = WriteJSON(f, t)
	default:
		err = core.Errorf(core.CategoryInvalidArgument, "unsupported file format: %s", format)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

var _ core.Adapter = (*Adapter)(nil)
