package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// DefaultWorkers is the number of concurrent training runs.
const DefaultWorkers = 2

const defaultQueueSize = 64

// ExperimentStore is the part of the metadata store the runner uses.
type ExperimentStore interface {
	GetExperiment(id int64) (*core.Experiment, error)
	StartExperiment(id int64) error
	CompleteExperiment(id int64, result *core.ExperimentResult) error
	FailExperiment(id int64, errMsg string) error
}

// Executor runs one experiment to completion and returns what to store.
type Executor interface {
	Execute(ctx context.Context, exp *core.Experiment) (*core.ExperimentResult, error)
}

// DatasetLoader returns the current table of a dataset.
type DatasetLoader interface {
	LoadDataset(ctx context.Context, datasetID int64) (*core.Table, error)
}

// TrainingExecutor trains an experiment and persists its artifacts.
type TrainingExecutor struct {
	Loader    DatasetLoader
	Trainer   *Trainer
	Artifacts *ArtifactStore
}

// Execute implements Executor.
func (e *TrainingExecutor) Execute(ctx context.Context, exp *core.Experiment) (*core.ExperimentResult, error) {
	cfg, err := ConfigFromExperiment(exp)
	if err != nil {
		return nil, err
	}
	t, err := e.Loader.LoadDataset(ctx, exp.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	res, err := e.Trainer.Train(ctx, t, cfg)
	if err != nil {
		return nil, err
	}
	modelPath, err := e.Artifacts.SaveModel(exp.ID, cfg.Algorithm, res.Model)
	if err != nil {
		return nil, err
	}
	bundlePath, err := e.Artifacts.SaveBundle(exp.ID, res.Bundle)
	if err != nil {
		return nil, err
	}
	return res.Record(modelPath, bundlePath)
}

// Task is the handle of one queued training run.
type Task struct {
	ExperimentID int64

	exp    *core.Experiment
	mu     sync.RWMutex
	status core.ExperimentStatus
	errMsg string
	done   chan struct{}
}

// Status returns the current state of the run.
func (t *Task) Status() core.ExperimentStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the failure message of a failed run.
func (t *Task) Err() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.errMsg
}

// Done is closed once the run reaches a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) finish(status core.ExperimentStatus, msg string) {
	t.mu.Lock()
	t.status, t.errMsg = status, msg
	t.mu.Unlock()
	close(t.done)
}

// RunnerConfig holds the dependencies of a Runner.
type RunnerConfig struct {
	Store    ExperimentStore
	Executor Executor
	// Workers bounds concurrent runs; zero means DefaultWorkers.
	Workers int
	Logger  *slog.Logger
	// OnStatus, when set, observes every status transition.
	OnStatus func(experimentID int64, status core.ExperimentStatus)
}

// Runner dispatches training runs onto a fixed pool of workers. Runs are
// never cancelled once started.
type Runner struct {
	store    ExperimentStore
	executor Executor
	workers  int
	logger   *slog.Logger
	onStatus func(int64, core.ExperimentStatus)
	jobs     chan *Task

	// startMu serializes the status check and transition in Start.
	startMu sync.Mutex
}

// NewRunner creates a runner. Call Run to start the workers.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	onStatus := cfg.OnStatus
	if onStatus == nil {
		onStatus = func(int64, core.ExperimentStatus) {}
	}
	return &Runner{
		store:    cfg.Store,
		executor: cfg.Executor,
		workers:  workers,
		logger:   logger,
		onStatus: onStatus,
		jobs:     make(chan *Task, defaultQueueSize),
	}
}

// Start moves a pending experiment to training and queues it. It returns
// once the status is stored. Experiments already training are rejected with
// AlreadyInProgress and finished ones with AlreadyFinished.
func (r *Runner) Start(ctx context.Context, experimentID int64) (*Task, error) {
	exp, err := r.claim(experimentID)
	if err != nil {
		return nil, err
	}
	r.onStatus(experimentID, core.ExperimentTraining)

	task := &Task{ExperimentID: experimentID, exp: exp, status: core.ExperimentTraining, done: make(chan struct{})}
	select {
	case r.jobs <- task:
		r.logger.Info("training queued", "experiment_id", experimentID, "algorithm", exp.Algorithm)
		return task, nil
	case <-ctx.Done():
		r.fail(task, "training was not started: "+ctx.Err().Error())
		return nil, ctx.Err()
	}
}

func (r *Runner) claim(experimentID int64) (*core.Experiment, error) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	exp, err := r.store.GetExperiment(experimentID)
	if err != nil {
		return nil, err
	}
	if err := exp.Status.CheckStart(experimentID); err != nil {
		return nil, err
	}
	if err := r.store.StartExperiment(experimentID); err != nil {
		if errors.Is(err, core.ErrAlreadyInProgress) || errors.Is(err, core.ErrAlreadyFinished) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark experiment %d as training: %w", experimentID, err)
	}
	exp.Status = core.ExperimentTraining
	return exp, nil
}

// Run processes queued runs until ctx is done. Runs in flight complete;
// runs still queued are marked failed.
func (r *Runner) Run(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	for range r.workers {
		eg.Go(func() error {
			for {
				if egctx.Err() != nil {
					return nil
				}
				select {
				case <-egctx.Done():
					return nil
				case task := <-r.jobs:
					r.execute(context.WithoutCancel(egctx), task)
				}
			}
		})
	}
	err := eg.Wait()

	for {
		select {
		case task := <-r.jobs:
			r.fail(task, "training aborted: runner stopped")
		default:
			return err
		}
	}
}

func (r *Runner) execute(ctx context.Context, task *Task) {
	logger := r.logger.With("experiment_id", task.ExperimentID)
	logger.Info("training started")

	result, err := r.safeExecute(ctx, task.exp)
	if err != nil {
		logger.Error("training failed", "error", err)
		r.fail(task, err.Error())
		return
	}
	if err := r.store.CompleteExperiment(task.ExperimentID, result); err != nil {
		logger.Error("failed to store training result", "error", err)
		r.fail(task, fmt.Sprintf("failed to store training result: %v", err))
		return
	}
	logger.Info("training completed", "seconds", result.TrainingTime)
	task.finish(core.ExperimentCompleted, "")
	r.onStatus(task.ExperimentID, core.ExperimentCompleted)
}

// safeExecute turns a panicking run into an error so the experiment still
// reaches a terminal status.
func (r *Runner) safeExecute(ctx context.Context, exp *core.Experiment) (res *core.ExperimentResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = core.Errorf(core.CategoryInternal, "training panicked: %v", p)
		}
	}()
	return r.executor.Execute(ctx, exp)
}

func (r *Runner) fail(task *Task, msg string) {
	if err := r.store.FailExperiment(task.ExperimentID, msg); err != nil {
		r.logger.Error("failed to record training failure", "experiment_id", task.ExperimentID, "error", err)
	}
	task.finish(core.ExperimentFailed, msg)
	r.onStatus(task.ExperimentID, core.ExperimentFailed)
}
