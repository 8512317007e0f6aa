package preprocess

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/internal/testutil"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func table(t *testing.T, cols ...*core.Column) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(cols...)
	require.NoError(t, err)
	return tbl
}

func ptr(f float64) *float64 { return &f }

func column(t *testing.T, res *Result, name string) *core.Column {
	t.Helper()
	col, ok := res.Table.Column(name)
	require.True(t, ok)
	return col
}

func TestApply_FillMean(t *testing.T) {
	tbl := table(t, core.NewFloatColumn("x", []float64{1, math.NaN(), 3}))

	res, err := New(testutil.NewTestLogger(t)).Apply(tbl, Request{Column: "x", Action: FillMean})
	require.NoError(t, err)

	assert.Equal(t, "Filled 1 missing values with mean: 2.00", res.Message)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, column(t, res, "x").Values)
	assert.Equal(t, 3, res.OriginalRows)
	assert.Equal(t, 3, res.FinalRows)
	assert.Equal(t, 0, res.RowsAffected)

	orig, _ := tbl.Column("x")
	assert.Nil(t, orig.Values[1], "input table must not change")
}

func TestApply_FillMedianWithTokens(t *testing.T) {
	tbl := table(t, core.NewColumn("x", core.KindString, []any{"1", "?", "10", "4", "N/A"}))

	res, err := New(nil).Apply(tbl, Request{Column: "x", Action: FillMedian, MissingTokens: []string{"?"}})
	require.NoError(t, err)

	assert.Equal(t, "Filled 2 missing values with median: 4.00", res.Message)
	col := column(t, res, "x")
	assert.Equal(t, core.KindFloat, col.Kind)
	assert.Equal(t, []any{1.0, 4.0, 10.0, 4.0, 4.0}, col.Values)
}

func TestApply_FillMeanRejectsText(t *testing.T) {
	tbl := table(t, core.NewColumn("city", core.KindString, []any{"Paris", nil}))
	_, err := New(nil).Apply(tbl, Request{Column: "city", Action: FillMean})
	assert.ErrorIs(t, err, core.ErrNonNumericColumn)
}

func TestApply_FillMode(t *testing.T) {
	tbl := table(t, core.NewColumn("c", core.KindString, []any{"b", nil, "a", "b", "a", nil}))

	res, err := New(nil).Apply(tbl, Request{Column: "c", Action: FillMode})
	require.NoError(t, err)
	assert.Equal(t, "Filled 2 missing values with mode: a", res.Message)
	assert.Equal(t, []any{"b", "a", "a", "b", "a", "a"}, column(t, res, "c").Values)

	empty := table(t, core.NewColumn("c", core.KindString, []any{nil, nil}))
	res, err = New(nil).Apply(empty, Request{Column: "c", Action: FillMode})
	require.NoError(t, err)
	assert.Equal(t, "No mode found", res.Message)
	assert.Equal(t, []any{nil, nil}, column(t, res, "c").Values)
}

func TestApply_FillForwardKeepsLeadingGaps(t *testing.T) {
	tbl := table(t, core.NewColumn("c", core.KindInt, []any{nil, int64(1), nil, nil, int64(4), nil}))

	res, err := New(nil).Apply(tbl, Request{Column: "c", Action: FillForward})
	require.NoError(t, err)
	assert.Equal(t, "Forward filled 3 missing values", res.Message)
	assert.Equal(t, []any{nil, int64(1), int64(1), int64(1), int64(4), int64(4)}, column(t, res, "c").Values)
}

func TestApply_RemoveRows(t *testing.T) {
	tbl := table(t,
		core.NewColumn("c", core.KindString, []any{"a", "?", nil, "b"}),
		core.NewColumn("id", core.KindInt, []any{int64(1), int64(2), int64(3), int64(4)}),
	)

	res, err := New(nil).Apply(tbl, Request{Column: "c", Action: RemoveRows, MissingTokens: []string{"?"}})
	require.NoError(t, err)
	assert.Equal(t, "Removed 2 rows with missing values", res.Message)
	assert.Equal(t, 2, res.RowsAffected)
	assert.Equal(t, 4, res.OriginalRows)
	assert.Equal(t, 2, res.FinalRows)
	assert.Equal(t, []any{int64(1), int64(4)}, column(t, res, "id").Values)
}

func TestApply_ReplaceOutliersRange(t *testing.T) {
	tests := []struct {
		name string
		col  *core.Column
		want []any
	}{
		{
			name: "float column",
			col:  core.NewColumn("v", core.KindFloat, []any{-5.0, 3.0, 7.0, 50.0}),
			want: []any{5.0, 3.0, 7.0, 5.0},
		},
		{
			name: "integer column",
			col:  core.NewColumn("v", core.KindInt, []any{int64(-5), int64(3), int64(7), int64(50)}),
			want: []any{int64(5), int64(3), int64(7), int64(5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(nil).Apply(table(t, tt.col), Request{
				Column:        "v",
				Action:        ReplaceOutliers,
				OutlierMethod: profile.MethodRange,
				Min:           ptr(0),
				Max:           ptr(10),
				Replacement:   StrategyMean,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, column(t, res, "v").Values)
			assert.Equal(t, 2, res.ValuesReplaced)
			assert.Equal(t, "Replaced 2 outliers with mean: 5.00", res.Message)
		})
	}
}

func TestApply_ReplaceOutliersStrategies(t *testing.T) {
	base := core.NewColumn("v", core.KindInt, []any{int64(1), int64(2), int64(2), int64(9), int64(100)})
	tests := []struct {
		strategy Strategy
		message  string
		want     int64
	}{
		{StrategyMedian, "Replaced 1 outliers with median: 2.00", 2},
		{StrategyMin, "Replaced 1 outliers with min: 1.00", 1},
		{StrategyMax, "Replaced 1 outliers with max: 9.00", 9},
		{StrategyMode, "Replaced 1 outliers with mode: 2", 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			res, err := New(nil).Apply(table(t, base), Request{
				Column: "v", Action: ReplaceOutliers, OutlierMethod: profile.MethodRange,
				Max: ptr(50), Replacement: tt.strategy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.want, column(t, res, "v").Values[4])
		})
	}
}

func TestApply_ReplaceOutliersNoneDetected(t *testing.T) {
	tbl := table(t, core.NewFloatColumn("v", []float64{5, 5, 5, 5}))
	res, err := New(nil).Apply(tbl, Request{Column: "v", Action: ReplaceOutliers, OutlierMethod: profile.MethodZScore})
	require.NoError(t, err)
	assert.Equal(t, "No outliers detected", res.Message)
	assert.Equal(t, 0, res.ValuesReplaced)
}

func TestApply_ReplaceOutliersEverythingFlagged(t *testing.T) {
	tbl := table(t, core.NewFloatColumn("v", []float64{20, 30}))
	_, err := New(nil).Apply(tbl, Request{Column: "v", Action: ReplaceOutliers, Max: ptr(10)})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestApply_RemoveOutliers(t *testing.T) {
	tbl := table(t,
		core.NewColumn("v", core.KindFloat, []any{1.0, 2.0, nil, 3.0, 4.0, 5.0, 100.0}),
		core.NewColumn("id", core.KindInt, []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6), int64(7)}),
	)

	t.Run("iqr keeps nulls", func(t *testing.T) {
		res, err := New(nil).Apply(tbl, Request{Column: "v", Action: RemoveOutliers, OutlierMethod: profile.MethodIQR})
		require.NoError(t, err)
		assert.Equal(t, "Removed 1 rows with outliers using IQR method", res.Message)
		assert.Equal(t, 1, res.RowsAffected)
		assert.Equal(t, 6, res.FinalRows)
	})

	t.Run("range with one bound", func(t *testing.T) {
		res, err := New(nil).Apply(tbl, Request{Column: "v", Action: RemoveOutliers, OutlierMethod: profile.MethodRange, Min: ptr(2)})
		require.NoError(t, err)
		assert.Equal(t, "Removed 1 rows with outliers outside range [2.0, None]", res.Message)
	})

	t.Run("zscore", func(t *testing.T) {
		res, err := New(nil).Apply(tbl, Request{Column: "v", Action: RemoveOutliers, OutlierMethod: profile.MethodZScore})
		require.NoError(t, err)
		assert.Equal(t, "Removed 0 rows with outliers using Z-score method", res.Message)
	})
}

func TestApply_Errors(t *testing.T) {
	tbl := table(t,
		core.NewFloatColumn("v", []float64{1, 2}),
		core.NewColumn("s", core.KindString, []any{"a", "b"}),
	)
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing column", Request{Column: "nope", Action: FillMean}, core.ErrMissingColumns},
		{"unknown action", Request{Column: "v", Action: "explode"}, core.ErrUnsupportedMethod},
		{"unknown outlier method", Request{Column: "v", Action: RemoveOutliers, OutlierMethod: "lof"}, core.ErrUnsupportedMethod},
		{"unknown strategy", Request{Column: "v", Action: ReplaceOutliers, Replacement: "p99"}, core.ErrUnsupportedMethod},
		{"outliers on text", Request{Column: "s", Action: RemoveOutliers, OutlierMethod: profile.MethodIQR}, core.ErrNonNumericColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil).Apply(tbl, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
