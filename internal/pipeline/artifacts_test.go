package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/ml"
	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func TestArtifactStore_RoundTrip(t *testing.T) {
	res, err := NewTrainer(testutil.NewTestLogger(t), true).
		Train(context.Background(), flowers(t, 40), baseConfig(ml.NaiveBayes))
	require.NoError(t, err)

	store := NewArtifactStore(t.TempDir())
	modelPath, err := store.SaveModel(7, ml.NaiveBayes, res.Model)
	require.NoError(t, err)
	assert.Equal(t, "experiment_7", filepath.Base(filepath.Dir(modelPath)))
	assert.True(t, strings.HasPrefix(filepath.Base(modelPath), "model_"))

	bundlePath, err := store.SaveBundle(7, res.Bundle)
	require.NoError(t, err)
	assert.Equal(t, "transformations_7.json", filepath.Base(bundlePath))

	alg, model, err := store.LoadModel(modelPath)
	require.NoError(t, err)
	assert.Equal(t, ml.NaiveBayes, alg)

	bundle, err := store.LoadBundle(bundlePath)
	require.NoError(t, err)
	assert.Equal(t, res.Bundle.FeatureColumns, bundle.FeatureColumns)

	rows, err := TableFromRecords([]map[string]any{{"size": 1.2, "petals": 5.0, "color": "blue"}})
	require.NoError(t, err)
	want, err := Predict(ml.NaiveBayes, res.Model, res.Bundle, rows, nil)
	require.NoError(t, err)
	got, err := Predict(alg, model, bundle, rows, nil)
	require.NoError(t, err)
	assert.Equal(t, want.Predictions, got.Predictions)
	assert.Equal(t, want.Labels, got.Labels)
}

func TestArtifactStore_BundleWrittenOnce(t *testing.T) {
	store := NewArtifactStore(t.TempDir())
	b := &Bundle{FeatureColumns: []string{"x"}}

	_, err := store.SaveBundle(1, b)
	require.NoError(t, err)
	_, err = store.SaveBundle(1, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrStorageUnavailable))
}

func TestArtifactStore_NotFound(t *testing.T) {
	store := NewArtifactStore(t.TempDir())

	_, _, err := store.LoadModel(filepath.Join(store.Dir(), "missing.gob"))
	assert.True(t, errors.Is(err, core.ErrNotFound))

	_, err = store.LoadBundle(filepath.Join(store.Dir(), "missing.json"))
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestUnmarshalBundle_Incomplete(t *testing.T) {
	_, err := UnmarshalBundle([]byte(`{"numerical_columns":["x"]}`))
	assert.ErrorContains(t, err, "no scaler")

	_, err = UnmarshalBundle([]byte(`{"categorical_columns":["c"]}`))
	assert.ErrorContains(t, err, `no encoder for "c"`)

	_, err = UnmarshalBundle([]byte(`{`))
	assert.Error(t, err)
}
