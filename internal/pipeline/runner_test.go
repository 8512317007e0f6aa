package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"
)

type memStore struct {
	mu          sync.Mutex
	experiments map[int64]*core.Experiment
}

func newMemStore(exps ...*core.Experiment) *memStore {
	s := &memStore{experiments: map[int64]*core.Experiment{}}
	for _, e := range exps {
		s.experiments[e.ID] = e
	}
	return s
}

func (s *memStore) GetExperiment(id int64) (*core.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.experiments[id]
	if !ok {
		return nil, core.Errorf(core.CategoryNotFound, "experiment %d not found", id)
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) StartExperiment(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.experiments[id]
	if err := e.Status.CheckStart(id); err != nil {
		return err
	}
	e.Status = core.ExperimentTraining
	return nil
}

func (s *memStore) CompleteExperiment(id int64, result *core.ExperimentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments[id].Status = core.ExperimentCompleted
	s.experiments[id].Result = result
	return nil
}

func (s *memStore) FailExperiment(id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experiments[id].Status = core.ExperimentFailed
	s.experiments[id].ErrorMessage = errMsg
	return nil
}

type executorFunc func(ctx context.Context, exp *core.Experiment) (*core.ExperimentResult, error)

func (f executorFunc) Execute(ctx context.Context, exp *core.Experiment) (*core.ExperimentResult, error) {
	return f(ctx, exp)
}

type tableLoader struct{ table *core.Table }

func (l tableLoader) LoadDataset(context.Context, int64) (*core.Table, error) {
	return l.table, nil
}

func pending(id int64) *core.Experiment {
	return &core.Experiment{
		ID:             id,
		DatasetID:      1,
		Algorithm:      string(ml.DecisionTree),
		TargetColumn:   "species",
		FeatureColumns: []string{"size", "petals", "color"},
		TrainRatio:     0.8,
		RandomSeed:     42,
		Status:         core.ExperimentPending,
	}
}

// startRunner runs r until the test ends.
func startRunner(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("training did not finish")
	}
}

func TestRunner_TrainsAndStoresArtifacts(t *testing.T) {
	store := newMemStore(pending(1))
	artifacts := NewArtifactStore(t.TempDir())
	var statuses []core.ExperimentStatus
	var mu sync.Mutex

	r := NewRunner(RunnerConfig{
		Store: store,
		Executor: &TrainingExecutor{
			Loader:    tableLoader{table: flowers(t, 40)},
			Trainer:   NewTrainer(testutil.NewTestLogger(t), true),
			Artifacts: artifacts,
		},
		Logger: testutil.NewTestLogger(t),
		OnStatus: func(_ int64, s core.ExperimentStatus) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	})
	startRunner(t, r)

	task, err := r.Start(context.Background(), 1)
	require.NoError(t, err)
	waitDone(t, task)

	require.Equal(t, core.ExperimentCompleted, task.Status(), task.Err())
	exp, _ := store.GetExperiment(1)
	require.NotNil(t, exp.Result)
	assert.FileExists(t, exp.Result.ModelPath)
	assert.FileExists(t, exp.Result.TransformationsPath)
	assert.Contains(t, string(exp.Result.Metrics), `"accuracy"`)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []core.ExperimentStatus{core.ExperimentTraining, core.ExperimentCompleted}, statuses)
}

func TestRunner_ConcurrentStartRunsOnce(t *testing.T) {
	store := newMemStore(pending(1))
	release := make(chan struct{})
	var runs int
	var mu sync.Mutex
	r := NewRunner(RunnerConfig{
		Store: store,
		Executor: executorFunc(func(context.Context, *core.Experiment) (*core.ExperimentResult, error) {
			mu.Lock()
			runs++
			mu.Unlock()
			<-release
			return &core.ExperimentResult{}, nil
		}),
		Workers: 4,
	})
	startRunner(t, r)

	const callers = 8
	var wg sync.WaitGroup
	tasks := make(chan *Task, callers)
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := r.Start(context.Background(), 1)
			if err != nil {
				errs <- err
				return
			}
			tasks <- task
		}()
	}
	wg.Wait()
	close(tasks)
	close(errs)

	require.Len(t, tasks, 1)
	require.Len(t, errs, callers-1)
	for err := range errs {
		assert.True(t, errors.Is(err, core.ErrAlreadyInProgress), err.Error())
	}

	close(release)
	waitDone(t, <-tasks)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, runs)
}

// staleStore reads every experiment as pending, the way a process sees a
// row another process has just claimed.
type staleStore struct{ *memStore }

func (s staleStore) GetExperiment(id int64) (*core.Experiment, error) {
	e, err := s.memStore.GetExperiment(id)
	if err != nil {
		return nil, err
	}
	e.Status = core.ExperimentPending
	return e, nil
}

func TestRunner_StartLosesToAnotherProcess(t *testing.T) {
	claimed := pending(1)
	claimed.Status = core.ExperimentTraining
	r := NewRunner(RunnerConfig{Store: staleStore{newMemStore(claimed)}})

	task, err := r.Start(context.Background(), 1)
	assert.Nil(t, task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAlreadyInProgress), err.Error())
	assert.Equal(t, "experiment 1 is already training", err.Error())
}

func TestRunner_StartRejectsFinished(t *testing.T) {
	done := pending(1)
	done.Status = core.ExperimentCompleted
	failed := pending(2)
	failed.Status = core.ExperimentFailed
	r := NewRunner(RunnerConfig{Store: newMemStore(done, failed)})

	for _, id := range []int64{1, 2} {
		_, err := r.Start(context.Background(), id)
		assert.True(t, errors.Is(err, core.ErrAlreadyFinished))
	}
	_, err := r.Start(context.Background(), 3)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestRunner_Failures(t *testing.T) {
	tests := []struct {
		name    string
		exec    executorFunc
		wantMsg string
	}{
		{
			name: "error",
			exec: func(context.Context, *core.Experiment) (*core.ExperimentResult, error) {
				return nil, core.MissingColumnsError([]string{"species"})
			},
			wantMsg: "missing columns: species",
		},
		{
			name: "panic",
			exec: func(context.Context, *core.Experiment) (*core.ExperimentResult, error) {
				panic("boom")
			},
			wantMsg: "training panicked: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(pending(1))
			r := NewRunner(RunnerConfig{Store: store, Executor: tt.exec, Logger: testutil.NewTestLogger(t)})
			startRunner(t, r)

			task, err := r.Start(context.Background(), 1)
			require.NoError(t, err)
			waitDone(t, task)

			assert.Equal(t, core.ExperimentFailed, task.Status())
			assert.Equal(t, tt.wantMsg, task.Err())
			exp, _ := store.GetExperiment(1)
			assert.Equal(t, core.ExperimentFailed, exp.Status)
			assert.Equal(t, tt.wantMsg, exp.ErrorMessage)
		})
	}
}

func TestRunner_StopFailsQueued(t *testing.T) {
	store := newMemStore(pending(1))
	r := NewRunner(RunnerConfig{Store: store, Executor: executorFunc(nil)})

	task, err := r.Start(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))

	waitDone(t, task)
	assert.Equal(t, core.ExperimentFailed, task.Status())
	assert.Contains(t, task.Err(), "runner stopped")
}
