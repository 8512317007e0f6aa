// Package adapter provides the dataset reader registry and shared helpers
// for LeapML's tabular file adapters.
//
// The Adapter contract itself lives in pkg/core. Concrete implementations
// are in pkg/adapters/ subdirectories and register themselves from init().
package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// OutputFormat resolves the format a table is actually written in.
// ARFF is never re-emitted, and a dataset read from ARFF is always written
// back as CSV; substituted reports that the request was overridden. An empty
// request keeps the source format.
func OutputFormat(source, requested core.Format) (actual core.Format, substituted bool) {
	if requested == "" {
		requested = source
	}
	if requested == core.FormatCSV {
		return core.FormatCSV, false
	}
	if source == core.FormatARFF || requested == core.FormatARFF {
		return core.FormatCSV, true
	}
	return requested, false
}

// OutputPath swaps the extension of path to match format.
func OutputPath(path string, format core.Format) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, "."+string(format)) {
		return path
	}
	return strings.TrimSuffix(path, ext) + "." + string(format)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (core.Format, error) {
	return core.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DefaultNullTokens are the cell spellings decoded as structural nulls when
// reading delimited text. Other missing markers such as "?" stay materialized
// so the missing-value detector can report them.
var DefaultNullTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// ResolveSource returns the file to read for a dataset. A missing ARFF file
// falls back to a sibling CSV written by an earlier preprocessing pass.
func ResolveSource(path string, format core.Format) (string, core.Format, error) {
	if _, err := os.Stat(path); err == nil {
		return path, format, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if format == core.FormatARFF || strings.HasSuffix(path, ".arff") {
		csvPath := strings.TrimSuffix(path, ".arff") + ".csv"
		if _, err := os.Stat(csvPath); err == nil {
			return csvPath, core.FormatCSV, nil
		}
		return "", "", core.Errorf(core.CategoryNotFound, "neither ARFF nor CSV found for: %s", path)
	}
	return "", "", core.Errorf(core.CategoryNotFound, "file not found: %s", path)
}
