package core

import (
	"context"
	"strings"
)

// Format is a dataset file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatARFF Format = "arff"
)

// SupportedFormats lists every readable format.
var SupportedFormats = []Format{FormatCSV, FormatJSON, FormatARFF}

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatARFF:
		return f, nil
	default:
		return "", Errorf(CategoryInvalidArgument, "unsupported file format: %s", s)
	}
}

// Adapter reads and writes tabular files.
type Adapter interface {
	// Connect prepares the adapter for use.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close releases resources.
	Close() error

	// Read decodes the file at path into a table.
	Read(ctx context.Context, path string, format Format) (*Table, error)

	// Write encodes the table to path. Callers resolve the actual output
	// format through the write policy before calling Write.
	Write(ctx context.Context, t *Table, path string, format Format) error
}

// AdapterConfig holds configuration for an adapter.
type AdapterConfig struct {
	Type    string
	Path    string
	Options map[string]string
}
