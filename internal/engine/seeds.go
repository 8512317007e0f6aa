package engine

// seeds.go - bulk registration of a directory of dataset files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// ImportDir registers every readable dataset file directly inside dir,
// in name order. Files with unsupported extensions are skipped. It stops at
// the first file that fails to import.
func (e *Engine) ImportDir(ctx context.Context, dir string) ([]*core.Dataset, error) {
	e.logger.Debug("importing dataset directory", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.Errorf(core.CategoryNotFound, "directory not found: %s", dir)
		}
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var out []*core.Dataset
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, err := adapter.FormatFromPath(entry.Name()); err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		e.logger.Debug("importing dataset file", "path", path)

		ds, err := e.AddDataset(ctx, "", path)
		if err != nil {
			return out, fmt.Errorf("failed to import %s: %w", entry.Name(), err)
		}
		out = append(out, ds)
	}
	return out, nil
}
