package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), core.AdapterConfig{Type: "duckdb", Path: ":memory:"}))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name      string
		setupPath func(t *testing.T) string
		verify    func(t *testing.T, path string)
	}{
		{
			name: "in-memory",
			setupPath: func(_ *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "file-based",
			setupPath: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "scratch.duckdb")
			},
			verify: func(t *testing.T, path string) {
				_, err := os.Stat(path)
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			adp := New(nil)

			dbPath := tt.setupPath(t)
			require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Path: dbPath}))
			defer func() { _ = adp.Close() }()

			if tt.verify != nil {
				tt.verify(t, dbPath)
			}
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	tbl, err := core.NewTable(core.NewColumn("a", core.KindInt, []any{int64(1)}))
	require.NoError(t, err)

	err = adp.Write(context.Background(), tbl, filepath.Join(t.TempDir(), "x.csv"), core.FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")
}

func TestAdapter_ReadCSV(t *testing.T) {
	adp := connect(t)
	path := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name,score\n1,alice,100.5\n2,?,NA\n3,carol,300.25\n"), 0o600))

	tbl, err := adp.Read(context.Background(), path, core.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "score"}, tbl.ColumnNames())
	assert.Equal(t, 3, tbl.NumRows())

	id, _ := tbl.Column("id")
	assert.Equal(t, core.KindInt, id.Kind)

	name, _ := tbl.Column("name")
	assert.Equal(t, "?", name.Values[1])

	score, _ := tbl.Column("score")
	assert.Equal(t, core.KindFloat, score.Kind)
	assert.True(t, score.IsNull(1))
}

func TestAdapter_WriteAndReadBack(t *testing.T) {
	ctx := context.Background()
	adp := connect(t)
	dir := t.TempDir()

	tbl, err := core.NewTable(
		core.NewColumn("x", core.KindFloat, []any{1.5, nil, 3.0}),
		core.NewColumn("label", core.KindString, []any{"a", "b", nil}),
		core.NewColumn("n", core.KindInt, []any{int64(1), int64(2), int64(3)}),
	)
	require.NoError(t, err)

	for _, format := range []core.Format{core.FormatCSV, core.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			out := filepath.Join(dir, "out."+string(format))
			require.NoError(t, adp.Write(ctx, tbl, out, format))

			back, err := adp.Read(ctx, out, format)
			require.NoError(t, err)
			assert.Equal(t, tbl.ColumnNames(), back.ColumnNames())
			assert.Equal(t, 3, back.NumRows())

			x, _ := back.Column("x")
			assert.True(t, x.IsNull(1))
			assert.InDelta(t, 1.5, x.Values[0], 1e-12)
		})
	}
}

func TestAdapter_ReadARFF(t *testing.T) {
	adp := connect(t)
	path := filepath.Join(t.TempDir(), "w.arff")
	require.NoError(t, os.WriteFile(path, []byte("@relation w\n@attribute a numeric\n@attribute b {x,y}\n@data\n1,x\n2,?\n"), 0o600))

	tbl, err := adp.Read(context.Background(), path, core.FormatARFF)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())

	err = adp.Write(context.Background(), tbl, path, core.FormatARFF)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("duckdb"))
}
