package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// NewTable builds a table from columns and fails the test on error.
func NewTable(t testing.TB, columns ...*core.Column) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(columns...)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	return tbl
}

// Strings builds a string column; "" cells become structural nulls.
func Strings(name string, cells ...string) *core.Column {
	values := make([]any, len(cells))
	for i, c := range cells {
		if c != "" {
			values[i] = c
		}
	}
	return core.NewColumn(name, core.KindString, values)
}

// Floats builds a float column; NaN cells become structural nulls.
func Floats(name string, cells ...float64) *core.Column {
	return core.NewFloatColumn(name, cells)
}

// Ints builds an int column.
func Ints(name string, cells ...int64) *core.Column {
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return core.NewColumn(name, core.KindInt, values)
}

// WriteFile writes content to name inside a fresh temporary directory and
// returns its path.
func WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}
