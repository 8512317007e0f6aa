// Package features provides shared test utilities for API feature tests.
package features

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/engine"
	"github.com/leapstack-labs/leapml/internal/server/notifier"
	"github.com/leapstack-labs/leapml/internal/state"
	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapml/pkg/adapters/native"
)

// TestFixture holds all dependencies needed for API handler tests.
type TestFixture struct {
	Engine   *engine.Engine
	Notifier *notifier.Notifier[int64]
	DataDir  string

	t *testing.T
}

// SetupTestFixture creates an engine over an in-memory store with the
// native reader. Training runs are processed until the test ends and status
// transitions reach the notifier.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	tmpDir := t.TempDir()
	notify := notifier.New[int64]()

	eng, err := engine.New(engine.Config{
		DataDir:      filepath.Join(tmpDir, "data"),
		ModelsDir:    filepath.Join(tmpDir, "artifacts"),
		StateBackend: state.BackendSQLite,
		StatePath:    ":memory:",
		Reader:       "native",
		Workers:      1,
		ChaidEnabled: true,
		OnStatus: func(id int64, _ core.ExperimentStatus) {
			notify.Notify(id)
		},
		Logger: logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		_ = eng.Close()
	})

	return &TestFixture{
		Engine:   eng,
		Notifier: notify,
		DataDir:  filepath.Join(tmpDir, "data"),
		t:        t,
	}
}

// AddCSV registers a dataset from CSV content.
func (f *TestFixture) AddCSV(name, content string) *core.Dataset {
	f.t.Helper()
	path := filepath.Join(f.t.TempDir(), name+".csv")
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o600))
	ds, err := f.Engine.AddDataset(context.Background(), name, path)
	require.NoError(f.t, err)
	return ds
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
