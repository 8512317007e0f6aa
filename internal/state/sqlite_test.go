package state

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createDataset(t *testing.T, store core.Store, name string) *core.Dataset {
	t.Helper()
	ds := &core.Dataset{
		Name:         name,
		Filename:     name + ".csv",
		FilePath:     "/data/" + name + ".csv",
		Format:       core.FormatCSV,
		FileSize:     120,
		RowsCount:    10,
		ColumnsCount: 2,
		Columns:      []string{"x", "y"},
		ColumnsInfo:  json.RawMessage(`{"x":{"dtype":"float64"}}`),
	}
	require.NoError(t, store.CreateDataset(ds))
	return ds
}

func TestSQLiteStore_OpenFileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := Open(BackendSQLite, path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	version, err := store.(*SQLiteStore).MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// Migrations are idempotent.
	assert.NoError(t, store.InitSchema())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("mysql", "", nil)
	assert.True(t, errors.Is(err, core.ErrInvalidArgument))
}

func TestSQLiteStore_Datasets(t *testing.T) {
	store := setupTestStore(t)
	ds := createDataset(t, store, "iris")
	assert.NotZero(t, ds.ID)
	assert.Equal(t, "ready", ds.Status)

	got, err := store.GetDataset(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, "iris", got.Name)
	assert.Equal(t, core.FormatCSV, got.Format)
	assert.Equal(t, []string{"x", "y"}, got.Columns)
	assert.JSONEq(t, `{"x":{"dtype":"float64"}}`, string(got.ColumnsInfo))
	assert.WithinDuration(t, ds.CreatedAt, got.CreatedAt, 0)

	got.RowsCount = 8
	got.Columns = []string{"x"}
	got.ColumnsCount = 1
	require.NoError(t, store.UpdateDataset(got))
	again, err := store.GetDataset(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, again.RowsCount)
	assert.Equal(t, []string{"x"}, again.Columns)

	createDataset(t, store, "wine")
	all, err := store.ListDatasets()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.GetDataset(999)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(store.UpdateDataset(&core.Dataset{ID: 999}), core.ErrNotFound))
}

func TestSQLiteStore_Versions(t *testing.T) {
	store := setupTestStore(t)
	ds := createDataset(t, store, "iris")

	v1 := &core.DatasetVersion{DatasetID: ds.ID, FilePath: ds.FilePath, Format: core.FormatCSV, Description: "Original upload"}
	require.NoError(t, store.CreateVersion(v1))
	v2 := &core.DatasetVersion{
		DatasetID:       ds.ID,
		FilePath:        "/data/iris_v1700000000000.csv",
		Format:          core.FormatCSV,
		Description:     "Normalized",
		Transformations: json.RawMessage(`{"type":"normalization"}`),
	}
	require.NoError(t, store.CreateVersion(v2))
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, 2, v2.VersionNumber)

	versions, err := store.ListVersions(ds.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber, "newest first")
	assert.True(t, versions[0].IsActive)
	assert.False(t, versions[1].IsActive)
	assert.JSONEq(t, `{"type":"normalization"}`, string(versions[0].Transformations))

	got, _ := store.GetDataset(ds.ID)
	assert.Equal(t, v2.FilePath, got.FilePath)

	activated, err := store.ActivateVersion(v1.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	got, _ = store.GetDataset(ds.ID)
	assert.Equal(t, v1.FilePath, got.FilePath)

	versions, _ = store.ListVersions(ds.ID)
	active := 0
	for _, v := range versions {
		if v.IsActive {
			active++
			assert.Equal(t, v1.ID, v.ID)
		}
	}
	assert.Equal(t, 1, active)

	_, err = store.ActivateVersion(999)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	err = store.CreateVersion(&core.DatasetVersion{DatasetID: 999, FilePath: "x", Format: core.FormatCSV})
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSQLiteStore_ExperimentLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		finish func(t *testing.T, store *SQLiteStore, id int64)
		verify func(t *testing.T, exp *core.Experiment)
	}{
		{
			name: "completed",
			finish: func(t *testing.T, store *SQLiteStore, id int64) {
				require.NoError(t, store.StartExperiment(id))
				require.NoError(t, store.CompleteExperiment(id, &core.ExperimentResult{
					Metrics:             json.RawMessage(`{"accuracy":0.9}`),
					ConfusionMatrix:     json.RawMessage(`[[1,0],[0,1]]`),
					TrainingTime:        1.5,
					ModelPath:           "/artifacts/model.gob",
					TransformationsPath: "/artifacts/t.json",
				}))
			},
			verify: func(t *testing.T, exp *core.Experiment) {
				assert.Equal(t, core.ExperimentCompleted, exp.Status)
				require.NotNil(t, exp.Result)
				assert.JSONEq(t, `{"accuracy":0.9}`, string(exp.Result.Metrics))
				assert.Nil(t, exp.Result.ROCData)
				assert.Equal(t, 1.5, exp.Result.TrainingTime)
				assert.Equal(t, "/artifacts/model.gob", exp.Result.ModelPath)
				assert.NotNil(t, exp.CompletedAt)
			},
		},
		{
			name: "failed",
			finish: func(t *testing.T, store *SQLiteStore, id int64) {
				require.NoError(t, store.FailExperiment(id, "missing columns: y"))
			},
			verify: func(t *testing.T, exp *core.Experiment) {
				assert.Equal(t, core.ExperimentFailed, exp.Status)
				assert.Equal(t, "missing columns: y", exp.ErrorMessage)
				assert.Nil(t, exp.Result)
				assert.NotNil(t, exp.CompletedAt)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ds := createDataset(t, store, "iris")
			exp := &core.Experiment{
				Name:            "knn",
				DatasetID:       ds.ID,
				Algorithm:       "knn",
				Hyperparameters: map[string]any{"n_neighbors": 3},
				TargetColumn:    "y",
				FeatureColumns:  []string{"x"},
				TrainRatio:      0.8,
				RandomSeed:      42,
			}
			require.NoError(t, store.CreateExperiment(exp))
			assert.Equal(t, core.ExperimentPending, exp.Status)

			pending, err := store.GetExperiment(exp.ID)
			require.NoError(t, err)
			assert.Equal(t, float64(3), pending.Hyperparameters["n_neighbors"])
			assert.Equal(t, []string{"x"}, pending.FeatureColumns)
			assert.Nil(t, pending.CompletedAt)

			tt.finish(t, store, exp.ID)
			got, err := store.GetExperiment(exp.ID)
			require.NoError(t, err)
			tt.verify(t, got)
		})
	}
}

// Two stores on one database file stand in for the CLI and a server
// claiming the same experiment.
func TestSQLiteStore_StartExperimentIsConditional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	open := func() *SQLiteStore {
		store := NewSQLiteStore(testutil.NewTestLogger(t))
		require.NoError(t, store.Open(path))
		require.NoError(t, store.InitSchema())
		t.Cleanup(func() { _ = store.Close() })
		return store
	}
	cli, server := open(), open()

	ds := createDataset(t, cli, "iris")
	exp := &core.Experiment{Name: "knn", DatasetID: ds.ID, Algorithm: "knn", TargetColumn: "y"}
	require.NoError(t, cli.CreateExperiment(exp))

	require.NoError(t, cli.StartExperiment(exp.ID))
	err := server.StartExperiment(exp.ID)
	assert.True(t, errors.Is(err, core.ErrAlreadyInProgress), "second claim: %v", err)

	require.NoError(t, cli.CompleteExperiment(exp.ID, &core.ExperimentResult{TrainingTime: 1}))
	err = server.StartExperiment(exp.ID)
	assert.True(t, errors.Is(err, core.ErrAlreadyFinished), "claim after completion: %v", err)

	got, err := server.GetExperiment(exp.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ExperimentCompleted, got.Status)
}

func TestSQLiteStore_ListExperimentsNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	a := createDataset(t, store, "a")
	b := createDataset(t, store, "b")
	for i, ds := range []*core.Dataset{a, a, b} {
		exp := &core.Experiment{Name: string(rune('p' + i)), DatasetID: ds.ID, Algorithm: "knn", TargetColumn: "y"}
		require.NoError(t, store.CreateExperiment(exp))
	}

	list, err := store.ListExperiments(a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "q", list[0].Name)
	assert.Equal(t, "p", list[1].Name)

	all, err := store.ListExperiments(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = store.GetExperiment(42)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(store.StartExperiment(42), core.ErrNotFound))
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.GetDataset(1)
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
	assert.NoError(t, store.Close())
}
