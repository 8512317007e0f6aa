// Package config provides configuration management for the LeapML CLI.
//
// Values are layered with koanf: built-in defaults, an optional .env file,
// a leapml.yaml/leapml.yml/leapml.toml config file, LEAPML_ environment
// variables and finally explicitly set command-line flags.
package config

// StateConfig selects the metadata store.
type StateConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	DSN     string `koanf:"dsn"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host  string `koanf:"host"`
	Port  int    `koanf:"port"`
	Watch bool   `koanf:"watch"`
}

// TrainingConfig holds configuration for the training runner.
type TrainingConfig struct {
	Workers      int  `koanf:"workers"`
	ChaidEnabled bool `koanf:"chaid_enabled"`
}

// ProfileConfig holds data-quality analysis defaults.
type ProfileConfig struct {
	MissingTokens  []string `koanf:"missing_tokens"`
	DetectOutliers bool     `koanf:"detect_outliers"`
}

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string         `koanf:"data_dir"`
	ModelsDir    string         `koanf:"models_dir"`
	State        StateConfig    `koanf:"state"`
	Reader       string         `koanf:"reader"`
	Server       ServerConfig   `koanf:"server"`
	Training     TrainingConfig `koanf:"training"`
	Profile      ProfileConfig  `koanf:"profile"`
	Verbose      bool           `koanf:"verbose"`
	OutputFormat string         `koanf:"output"`
	LogFormat    string         `koanf:"log_format"`

	// ProjectRoot anchors relative paths. Not read from the config file.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultDataDir      = "data"
	DefaultModelsDir    = "artifacts"
	DefaultStateBackend = "sqlite"
	DefaultStateFile    = ".leapml/state.db"
	DefaultReader       = "duckdb"
	DefaultHost         = "localhost"
	DefaultPort         = 8765
	DefaultWorkers      = 2
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=json
	DefaultLogFormat    = "text"
)

// defaults returns the lowest configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"data_dir":                DefaultDataDir,
		"models_dir":              DefaultModelsDir,
		"state.backend":           DefaultStateBackend,
		"state.path":              DefaultStateFile,
		"state.dsn":               "",
		"reader":                  DefaultReader,
		"server.host":             DefaultHost,
		"server.port":             DefaultPort,
		"server.watch":            true,
		"training.workers":        DefaultWorkers,
		"training.chaid_enabled":  true,
		"profile.missing_tokens":  []string{},
		"profile.detect_outliers": true,
		"verbose":                 false,
		"output":                  DefaultOutput,
		"log_format":              DefaultLogFormat,
	}
}
