package native

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadCSV_InfersKinds(t *testing.T) {
	in := "id,score,flag,city,empty\n1,2.5,True,Paris,\n2,NA,False,?,\n3,4,true,Lyon,\n"
	tbl, err := ReadCSV(strings.NewReader(in), tokenSet(adapter.DefaultNullTokens))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.NumRows())

	tests := []struct {
		column string
		kind   core.Kind
		first  any
	}{
		{"id", core.KindInt, int64(1)},
		{"score", core.KindFloat, 2.5},
		{"flag", core.KindBool, true},
		{"city", core.KindString, "Paris"},
		{"empty", core.KindFloat, nil},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			col, ok := tbl.Column(tt.column)
			require.True(t, ok)
			assert.Equal(t, tt.kind, col.Kind)
			assert.Equal(t, tt.first, col.Values[0])
		})
	}

	score, _ := tbl.Column("score")
	assert.Nil(t, score.Values[1], "NA decodes to a structural null")
	city, _ := tbl.Column("city")
	assert.Equal(t, "?", city.Values[1], "? stays a visible token")
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), nil)
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 fields")
}

func TestReadJSON_RecordsAndColumns(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"records", `[{"b": 1, "a": "x"}, {"b": 2.5, "a": null}]`},
		{"columns with arrays", `{"b": [1, 2.5], "a": ["x", null]}`},
		{"columns with index objects", `{"b": {"0": 1, "1": 2.5}, "a": {"0": "x", "1": null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadJSON(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a"}, tbl.ColumnNames())
			b, _ := tbl.Column("b")
			assert.Equal(t, core.KindFloat, b.Kind)
			assert.Equal(t, []any{1.0, 2.5}, b.Values)
			a, _ := tbl.Column("a")
			assert.Equal(t, []any{"x", nil}, a.Values)
		})
	}
}

func TestReadARFF(t *testing.T) {
	in := `% weather
@relation weather
@attribute outlook {sunny, overcast, rainy}
@attribute 'temp c' numeric
@attribute humidity real
@attribute note string
@attribute day date "yyyy-MM-dd"
@data
sunny,85,85,'hot day',2024-01-01
?,80,90,?,not-a-date
rainy,?,70,'x, y',2024-01-03
`
	tbl, err := ReadARFF(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"outlook", "temp c", "humidity", "note", "day"}, tbl.ColumnNames())
	require.Equal(t, 3, tbl.NumRows())

	outlook, _ := tbl.Column("outlook")
	assert.Equal(t, core.KindString, outlook.Kind)
	assert.Equal(t, "?", outlook.Values[1])

	// 2 of 3 cells parse, below the 90% bar: kept as text.
	temp, _ := tbl.Column("temp c")
	assert.Equal(t, core.KindString, temp.Kind)

	humidity, _ := tbl.Column("humidity")
	assert.Equal(t, core.KindInt, humidity.Kind)

	note, _ := tbl.Column("note")
	assert.Equal(t, "x, y", note.Values[2])

	day, _ := tbl.Column("day")
	assert.Equal(t, core.KindTime, day.Kind)
	assert.Nil(t, day.Values[1])
}

func TestReadARFF_Invalid(t *testing.T) {
	_, err := ReadARFF(strings.NewReader("@relation x\n@attribute a numeric\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no @DATA")

	_, err = ReadARFF(strings.NewReader("@relation x\n@data\n1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no @ATTRIBUTE")
}

func TestAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{Type: "native"}))
	defer func() { _ = adp.Close() }()

	src := writeFile(t, dir, "in.csv", "x,label\n1.0,a\n,b\n3.5,a\n")
	tbl, err := adp.Read(ctx, src, core.FormatCSV)
	require.NoError(t, err)

	for _, format := range []core.Format{core.FormatCSV, core.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			out := filepath.Join(dir, "out."+string(format))
			require.NoError(t, adp.Write(ctx, tbl, out, format))

			back, err := adp.Read(ctx, out, format)
			require.NoError(t, err)
			assert.Equal(t, tbl.ColumnNames(), back.ColumnNames())
			x, _ := back.Column("x")
			assert.True(t, x.IsNull(1))
			assert.InDelta(t, 3.5, x.Values[2], 1e-12)
		})
	}

	err = adp.Write(ctx, tbl, filepath.Join(dir, "out.arff"), core.FormatARFF)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestAdapter_ARFFFallsBackToCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "iris.csv", "a\n1\n")
	adp := New(nil)

	tbl, err := adp.Read(context.Background(), filepath.Join(dir, "iris.arff"), core.FormatARFF)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())
}

func TestRegistered(t *testing.T) {
	assert.True(t, adapter.IsRegistered("native"))
}
