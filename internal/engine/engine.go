// Package engine orchestrates datasets, their versions and experiments.
//
// It owns the metadata store, the dataset adapter, the artifact store and
// the training runner, and exposes one method per user-facing operation.
// The CLI and the HTTP server are thin layers over it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapml/internal/pipeline"
	"github.com/leapstack-labs/leapml/internal/preprocess"
	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/internal/state"
	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// Engine serves every dataset and experiment operation.
type Engine struct {
	// Dataset adapter (lazy initialized)
	reader          core.Adapter
	readerType      string
	readerConnected bool
	readerMu        sync.Mutex

	logger *slog.Logger

	store      core.Store
	ownsStore  bool
	dataDir    string
	artifacts  *pipeline.ArtifactStore
	trainer    *pipeline.Trainer
	runner     *pipeline.Runner
	cache      *tableCache
	preprocess *preprocess.Engine
	profiler   *profile.Profiler

	missingTokens  []string
	detectOutliers bool
	chaidEnabled   bool
	watch          bool
}

// Config holds engine configuration.
type Config struct {
	// DataDir receives uploaded datasets.
	DataDir string
	// ModelsDir receives model blobs and transform bundles.
	ModelsDir string
	// Store is used when set; otherwise one is opened from StateBackend,
	// StatePath and StateDSN and closed by Close.
	Store        core.Store
	StateBackend state.Backend
	StatePath    string
	StateDSN     string
	// Reader names the registered dataset adapter ("duckdb" or "native").
	Reader string
	// MissingTokens extend the default missing-value tokens for analysis.
	MissingTokens  []string
	DetectOutliers bool
	// Workers bounds concurrent training runs.
	Workers      int
	ChaidEnabled bool
	// Watch invalidates cached tables when files under DataDir change.
	Watch bool
	// OnStatus observes experiment status transitions.
	OnStatus func(experimentID int64, status core.ExperimentStatus)
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The dataset adapter connects on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("initializing engine", "data_dir", cfg.DataDir, "models_dir", cfg.ModelsDir, "reader", cfg.Reader)

	for _, dir := range []string{cfg.DataDir, cfg.ModelsDir} {
		if dir == "" {
			return nil, core.Errorf(core.CategoryInvalidArgument, "data and models directories are required")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to create %s", dir)
		}
	}

	store, owns := cfg.Store, false
	if store == nil {
		dsn := cfg.StatePath
		if cfg.StateBackend == state.BackendPostgres {
			dsn = cfg.StateDSN
		}
		var err error
		store, err = state.Open(cfg.StateBackend, dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		owns = true
	}

	readerType := cfg.Reader
	if readerType == "" {
		readerType = "duckdb"
	}
	if !adapter.IsRegistered(readerType) {
		if owns {
			_ = store.Close()
		}
		return nil, &adapter.UnknownAdapterError{Type: readerType, Available: adapter.ListAdapters()}
	}

	e := &Engine{
		readerType:     readerType,
		logger:         logger,
		store:          store,
		ownsStore:      owns,
		dataDir:        cfg.DataDir,
		artifacts:      pipeline.NewArtifactStore(cfg.ModelsDir),
		trainer:        pipeline.NewTrainer(logger, cfg.ChaidEnabled),
		cache:          newTableCache(),
		preprocess:     preprocess.New(logger),
		profiler:       profile.NewProfiler(logger),
		missingTokens:  cfg.MissingTokens,
		detectOutliers: cfg.DetectOutliers,
		chaidEnabled:   cfg.ChaidEnabled,
		watch:          cfg.Watch,
	}
	e.runner = pipeline.NewRunner(pipeline.RunnerConfig{
		Store: store,
		Executor: &pipeline.TrainingExecutor{
			Loader:    e,
			Trainer:   e.trainer,
			Artifacts: e.artifacts,
		},
		Workers:  cfg.Workers,
		Logger:   logger,
		OnStatus: cfg.OnStatus,
	})
	return e, nil
}

// ensureReader lazily connects the dataset adapter.
func (e *Engine) ensureReader(ctx context.Context) (core.Adapter, error) {
	e.readerMu.Lock()
	defer e.readerMu.Unlock()

	if e.readerConnected {
		return e.reader, nil
	}

	e.logger.Debug("connecting dataset adapter", "adapter_type", e.readerType)
	cfg := core.AdapterConfig{Type: e.readerType}
	r, err := adapter.NewAdapter(cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset adapter: %w", err)
	}
	if err := r.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect dataset adapter: %w", err)
	}
	e.reader = r
	e.readerConnected = true
	return r, nil
}

// Run processes training runs, and watches DataDir when enabled, until ctx
// is done.
func (e *Engine) Run(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return e.runner.Run(egctx)
	})
	if e.watch {
		eg.Go(func() error {
			return e.cache.watch(egctx, e.dataDir, e.logger)
		})
	}
	return eg.Wait()
}

// Close releases the adapter and, when the engine opened it, the store.
func (e *Engine) Close() error {
	e.readerMu.Lock()
	defer e.readerMu.Unlock()

	var firstErr error
	if e.reader != nil {
		if err := e.reader.Close(); err != nil {
			firstErr = err
		}
		e.reader, e.readerConnected = nil, false
	}
	if e.ownsStore && e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Store returns the metadata store.
func (e *Engine) Store() core.Store {
	return e.store
}

// DataDir returns the dataset upload directory.
func (e *Engine) DataDir() string {
	return e.dataDir
}
