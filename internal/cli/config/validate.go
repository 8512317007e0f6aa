package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapml/pkg/adapter"
)

// OutputModes lists the accepted values of the output key.
var OutputModes = []string{"auto", "text", "markdown", "json", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.ModelsDir == "" {
		return fmt.Errorf("models_dir is required")
	}

	switch c.State.Backend {
	case "sqlite", "":
		if c.State.Path == "" {
			return fmt.Errorf("state.path is required for the sqlite backend")
		}
	case "postgres":
		if c.State.DSN == "" {
			return fmt.Errorf("state.dsn is required for the postgres backend\nHint: set LEAPML_STATE_DSN or state.dsn in leapml.yaml")
		}
	default:
		return fmt.Errorf("unknown state backend %q (available: sqlite, postgres)", c.State.Backend)
	}

	if !adapter.IsRegistered(c.Reader) {
		return fmt.Errorf("unknown reader %q (available: %s)\nHint: check the reader setting in leapml.yaml",
			c.Reader, strings.Join(adapter.ListAdapters(), ", "))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Training.Workers < 1 {
		return fmt.Errorf("training.workers must be at least 1, got %d", c.Training.Workers)
	}

	if !contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (use %s)", c.OutputFormat, strings.Join(OutputModes, ", "))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q (use text or json)", c.LogFormat)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
