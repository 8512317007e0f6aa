package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable(
		NewColumn("id", KindInt, []any{int64(1), int64(2), int64(3)}),
		NewColumn("score", KindFloat, []any{1.5, nil, math.NaN()}),
		NewColumn("city", KindString, []any{"Paris", "Lyon", nil}),
	)
	require.NoError(t, err)
	return tbl
}

func TestNewTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		columns []*Column
		wantErr string
	}{
		{
			name: "duplicate names",
			columns: []*Column{
				NewColumn("a", KindInt, []any{int64(1)}),
				NewColumn("a", KindInt, []any{int64(2)}),
			},
			wantErr: "duplicate column name",
		},
		{
			name: "ragged lengths",
			columns: []*Column{
				NewColumn("a", KindInt, []any{int64(1), int64(2)}),
				NewColumn("b", KindInt, []any{int64(2)}),
			},
			wantErr: "has 1 rows, expected 2",
		},
		{
			name:    "empty table",
			columns: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.columns...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestColumn_NullsAndNumeric(t *testing.T) {
	tbl := sampleTable(t)

	score, ok := tbl.Column("score")
	require.True(t, ok)
	assert.Equal(t, 2, score.NullCount(), "nil and NaN are both structural nulls")
	assert.True(t, score.IsNumeric())

	city, _ := tbl.Column("city")
	assert.False(t, city.IsNumeric())

	numericText := NewColumn("n", KindString, []any{"1", " 2.5 ", nil})
	assert.True(t, numericText.IsNumeric())

	values, valid := numericText.Floats()
	assert.Equal(t, []bool{true, true, false}, valid)
	assert.InDelta(t, 2.5, values[1], 1e-12)

	allNull := NewColumn("z", KindString, []any{nil, nil})
	assert.False(t, allNull.IsNumeric())
}

func TestTable_OperationsDoNotMutate(t *testing.T) {
	tbl := sampleTable(t)

	filtered := tbl.FilterRows([]bool{true, false, true})
	assert.Equal(t, 2, filtered.NumRows())
	assert.Equal(t, 3, tbl.NumRows())

	dropped := tbl.DropColumn("city")
	assert.Equal(t, []string{"id", "score"}, dropped.ColumnNames())
	assert.Equal(t, []string{"id", "score", "city"}, tbl.ColumnNames())

	replaced := tbl.WithColumn(NewColumn("id", KindInt, []any{int64(9), int64(9), int64(9)}))
	id, _ := replaced.Column("id")
	assert.Equal(t, int64(9), id.Values[0])
	orig, _ := tbl.Column("id")
	assert.Equal(t, int64(1), orig.Values[0])

	clone := tbl.Clone()
	cloneCity, _ := clone.Column("city")
	cloneCity.Values[0] = "Nice"
	origCity, _ := tbl.Column("city")
	assert.Equal(t, "Paris", origCity.Values[0])
}

func TestTable_SelectAndSlice(t *testing.T) {
	tbl := sampleTable(t)

	sel, err := tbl.Select([]string{"city", "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"city", "id"}, sel.ColumnNames())

	_, err = tbl.Select([]string{"id", "nope"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumns))

	page := tbl.Slice(1, 10)
	assert.Equal(t, 2, page.NumRows())
	assert.Equal(t, 0, tbl.Slice(5, 10).NumRows())
}

func TestTable_RecordsAreJSONSafe(t *testing.T) {
	tbl, err := NewTable(
		NewColumn("f", KindFloat, []any{math.Inf(1), 2.0}),
		NewColumn("ts", KindTime, []any{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), nil}),
	)
	require.NoError(t, err)

	records := tbl.Records()
	assert.Nil(t, records[0]["f"])
	assert.Equal(t, "2024-01-02T00:00:00Z", records[0]["ts"])

	_, err = json.Marshal(records)
	assert.NoError(t, err)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"?", "?"},
		{int64(3), "3"},
		{3.0, "3.0"},
		{0.25, "0.25"},
		{true, "True"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-03-01", "2024-03-01 10:11:12", "03/01/2024", "2024-03-01T10:11:12Z"} {
		_, ok := ParseTime(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"", "hello", "12.5"} {
		_, ok := ParseTime(s)
		assert.False(t, ok, s)
	}
}
