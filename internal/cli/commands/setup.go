package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/internal/cli/config"
	"github.com/leapstack-labs/leapml/internal/cli/output"
	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/state"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return newCommandContext(cmd, engineOptions{})
}

// engineOptions carry what only long-running commands need.
type engineOptions struct {
	onStatus func(int64, core.ExperimentStatus)
	watch    bool
}

func newCommandContext(cmd *cobra.Command, opts engineOptions) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger, opts)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: newRenderer(cmd, cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need the metadata store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
}

// getConfig returns the current configuration, falling back to defaults
// when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		DataDir:      config.DefaultDataDir,
		ModelsDir:    config.DefaultModelsDir,
		State:        config.StateConfig{Backend: config.DefaultStateBackend, Path: config.DefaultStateFile},
		Reader:       config.DefaultReader,
		Server:       config.ServerConfig{Host: config.DefaultHost, Port: config.DefaultPort, Watch: true},
		Training:     config.TrainingConfig{Workers: config.DefaultWorkers, ChaidEnabled: true},
		Profile:      config.ProfileConfig{DetectOutliers: true},
		OutputFormat: config.DefaultOutput,
		LogFormat:    config.DefaultLogFormat,
	}
}

func createEngine(cfg *config.Config, logger *slog.Logger, opts engineOptions) (*engine.Engine, error) {
	backend := state.Backend(cfg.State.Backend)
	if backend != state.BackendPostgres && cfg.State.Path != ":memory:" {
		if stateDir := filepath.Dir(cfg.State.Path); stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	return engine.New(engine.Config{
		DataDir:        cfg.DataDir,
		ModelsDir:      cfg.ModelsDir,
		StateBackend:   backend,
		StatePath:      cfg.State.Path,
		StateDSN:       cfg.State.DSN,
		Reader:         cfg.Reader,
		MissingTokens:  cfg.Profile.MissingTokens,
		DetectOutliers: cfg.Profile.DetectOutliers,
		Workers:        cfg.Training.Workers,
		ChaidEnabled:   cfg.Training.ChaidEnabled,
		Watch:          opts.watch,
		OnStatus:       opts.onStatus,
		Logger:         logger,
	})
}

// parseID parses a positional record id.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Errorf(core.CategoryInvalidArgument, "invalid %s id: %q", kind, s)
	}
	return id, nil
}

// formatFloat renders metrics and statistics compactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
