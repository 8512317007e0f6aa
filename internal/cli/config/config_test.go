package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure readers are registered via init()
	_ "github.com/leapstack-labs/leapml/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapml/pkg/adapters/native"
)

// newFlags mirrors the persistent flags of the root command.
func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", "", "")
	fs.String("models-dir", "", "")
	fs.String("state", "", "")
	fs.String("reader", "", "")
	fs.BoolP("verbose", "v", false, "")
	fs.StringP("output", "o", "", "")
	fs.String("log-format", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

// inTempProject switches to an empty directory for the duration of the test.
func inTempProject(t *testing.T) string {
	t.Helper()
	ResetConfig()
	t.Cleanup(ResetConfig)
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	inTempProject(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	root := cfg.ProjectRoot
	assert.Equal(t, filepath.Join(root, DefaultDataDir), cfg.DataDir)
	assert.Equal(t, filepath.Join(root, DefaultModelsDir), cfg.ModelsDir)
	assert.Equal(t, "sqlite", cfg.State.Backend)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.State.Path)
	assert.Equal(t, "duckdb", cfg.Reader)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.True(t, cfg.Server.Watch)
	assert.Equal(t, 2, cfg.Training.Workers)
	assert.True(t, cfg.Training.ChaidEnabled)
	assert.True(t, cfg.Profile.DetectOutliers)
	assert.Empty(t, cfg.Profile.MissingTokens)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	dir := inTempProject(t)
	writeFile(t, filepath.Join(dir, "leapml.yaml"), `
data_dir: uploads
reader: native
server:
  port: 9000
  watch: false
training:
  workers: 4
  chaid_enabled: false
profile:
  missing_tokens: ["?", "unknown"]
  detect_outliers: false
output: json
`)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "uploads"), cfg.DataDir)
	assert.Equal(t, "native", cfg.Reader)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Server.Watch)
	assert.Equal(t, 4, cfg.Training.Workers)
	assert.False(t, cfg.Training.ChaidEnabled)
	assert.Equal(t, []string{"?", "unknown"}, cfg.Profile.MissingTokens)
	assert.False(t, cfg.Profile.DetectOutliers)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, "leapml.yaml", filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_TOMLFile(t *testing.T) {
	dir := inTempProject(t)
	writeFile(t, filepath.Join(dir, "leapml.toml"), `
models_dir = "/srv/models"
reader = "native"

[state]
path = "meta/state.db"

[training]
workers = 3
`)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/models", cfg.ModelsDir)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "meta", "state.db"), cfg.State.Path)
	assert.Equal(t, 3, cfg.Training.Workers)
	assert.Equal(t, "native", cfg.Reader)
}

func TestLoadConfig_ExplicitFileAnchorsPaths(t *testing.T) {
	inTempProject(t)
	other := t.TempDir()
	cfgPath := filepath.Join(other, "custom.yaml")
	writeFile(t, cfgPath, "data_dir: d\nreader: native\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(other, "d"), cfg.DataDir)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := inTempProject(t)
	writeFile(t, filepath.Join(dir, "leapml.yaml"), "reader: duckdb\ntraining:\n  workers: 4\n")
	t.Setenv("LEAPML_READER", "native")
	t.Setenv("LEAPML_TRAINING_WORKERS", "6")
	t.Setenv("LEAPML_PROFILE_MISSING_TOKENS", "NA, ?,")
	t.Setenv("LEAPML_SERVER_WATCH", "false")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "native", cfg.Reader)
	assert.Equal(t, 6, cfg.Training.Workers)
	assert.Equal(t, []string{"NA", "?"}, cfg.Profile.MissingTokens)
	assert.False(t, cfg.Server.Watch)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := inTempProject(t)
	writeFile(t, filepath.Join(dir, ".env"), "LEAPML_SERVER_PORT=7000\n")
	t.Setenv("LEAPML_SERVER_PORT", "")
	require.NoError(t, os.Unsetenv("LEAPML_SERVER_PORT"))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	inTempProject(t)
	t.Setenv("LEAPML_READER", "duckdb")
	t.Setenv("LEAPML_OUTPUT", "yaml")

	flags := newFlags(t, "--reader", "native", "--data-dir", "in", "--state", "s.db", "-v")
	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "native", cfg.Reader)
	assert.Equal(t, filepath.Join(cwd, "in"), cfg.DataDir)
	assert.Equal(t, filepath.Join(cwd, "s.db"), cfg.State.Path)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "yaml", cfg.OutputFormat, "unset flags do not override env")
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := inTempProject(t)
	writeFile(t, filepath.Join(dir, "leapml.yaml"), "data_dir: [unclosed\n")

	_, err := LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DataDir:      "data",
			ModelsDir:    "artifacts",
			State:        StateConfig{Backend: "sqlite", Path: "state.db"},
			Reader:       "native",
			Server:       ServerConfig{Port: 8765},
			Training:     TrainingConfig{Workers: 1},
			OutputFormat: "auto",
			LogFormat:    "text",
		}
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr string
	}{
		{name: "valid"},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }, errSubstr: "data_dir is required"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.State.Backend = "postgres" }, errSubstr: "state.dsn is required"},
		{name: "postgres with dsn", mutate: func(c *Config) { c.State = StateConfig{Backend: "postgres", DSN: "postgres://x"} }},
		{name: "unknown backend", mutate: func(c *Config) { c.State.Backend = "mysql" }, errSubstr: "unknown state backend"},
		{name: "unknown reader", mutate: func(c *Config) { c.Reader = "spark" }, errSubstr: "unknown reader"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, errSubstr: "server.port"},
		{name: "no workers", mutate: func(c *Config) { c.Training.Workers = 0 }, errSubstr: "training.workers"},
		{name: "bad output", mutate: func(c *Config) { c.OutputFormat = "xml" }, errSubstr: "invalid output format"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "logfmt" }, errSubstr: "invalid log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"LEAPML_DATA_DIR":               "data_dir",
		"LEAPML_STATE_PATH":             "state.path",
		"LEAPML_TRAINING_CHAID_ENABLED": "training.chaid_enabled",
		"LEAPML_PROFILE_MISSING_TOKENS": "profile.missing_tokens",
		"LEAPML_LOG_FORMAT":             "log_format",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestTOMLParser_RoundTrip(t *testing.T) {
	p := TOMLParser()
	m, err := p.Unmarshal([]byte("reader = \"native\"\n[server]\nport = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, "native", m["reader"])

	b, err := p.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), "[server]")
}
