package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string) // setup before running
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name:    "init empty directory",
			args:    []string{},
			wantErr: false,
			wantFiles: []string{
				"leapml.yaml",
				".gitignore",
				"data",
			},
		},
		{
			name:    "init example",
			args:    []string{"--example"},
			wantErr: false,
			wantFiles: []string{
				"leapml.yaml",
				"samples/iris.csv",
			},
		},
		{
			name:    "init sub directory",
			args:    []string{"nested/project"},
			wantErr: false,
			wantFiles: []string{
				"nested/project/leapml.yaml",
				"nested/project/data",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapml.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "leapml.yaml"), []byte("existing"), 0600)
			},
			args:    []string{"--force"},
			wantErr: false,
			wantFiles: []string{
				"leapml.yaml",
				"data",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)

			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, err := os.Stat(filepath.Join(tmpDir, filepath.FromSlash(f)))
				assert.False(t, os.IsNotExist(err), "expected file/dir %q to exist", f)
			}
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
	assert.NotNil(t, cmd.Flags().Lookup("example"), "--example flag should exist")
}

func TestInitCreatesValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile("leapml.yaml")
	require.NoError(t, err, "failed to read leapml.yaml")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(content, &doc))
	assert.Equal(t, "data", doc["data_dir"])
	assert.Equal(t, "artifacts", doc["models_dir"])
	assert.Equal(t, "duckdb", doc["reader"])
	state, ok := doc["state"].(map[string]any)
	require.True(t, ok, "state should be a section")
	assert.Equal(t, "sqlite", state["backend"])
}

func TestListTemplateFiles(t *testing.T) {
	files, err := listTemplateFiles("example")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".gitignore", "data/", "leapml.yaml", "samples/iris.csv"}, files)

	groups := groupTemplateFiles(files)
	assert.Equal(t, []string{"samples/iris.csv"}, groups["samples"])
	assert.Len(t, groups["config"], 3)
}
