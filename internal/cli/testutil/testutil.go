// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapml/internal/cli/output"
)

// SetupTestProject creates a temporary project with a leapml.yaml using
// the native reader and a small CSV under samples/. Returns the project
// root and the CSV path.
func SetupTestProject(t *testing.T) (root, csvPath string) {
	t.Helper()

	root = t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "samples"), 0o755); err != nil {
		t.Fatalf("failed to create samples directory: %v", err)
	}

	cfg := `reader: native
training:
  workers: 1
server:
  watch: false
`
	if err := os.WriteFile(filepath.Join(root, "leapml.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create leapml.yaml: %v", err)
	}

	csvPath = filepath.Join(root, "samples", "flowers.csv")
	if err := os.WriteFile(csvPath, []byte(FlowersCSV(24)), 0o644); err != nil {
		t.Fatalf("failed to create flowers.csv: %v", err)
	}
	return root, csvPath
}

// FlowersCSV returns n rows of a two-class dataset that a nearest-neighbor
// model separates perfectly. Row 3 misses its size.
func FlowersCSV(n int) string {
	var b strings.Builder
	b.WriteString("size,petals,color,species\n")
	for i := 0; i < n; i++ {
		species, base := "a", 1.0
		if i%2 == 1 {
			species, base = "b", 10.0
		}
		color := "red"
		if i%3 == 0 {
			color = "blue"
		}
		size := fmt.Sprintf("%.1f", base+float64(i%4)*0.1)
		if i == 3 {
			size = ""
		}
		fmt.Fprintf(&b, "%s,%d,%s,%s\n", size, int(base)+i%3, color, species)
	}
	return b.String()
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
