package transform

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/pkg/core"
)

func sample(t *testing.T) *core.Table {
	t.Helper()
	tbl, err := core.NewTable(
		core.NewColumn("age", core.KindInt, []any{int64(10), int64(20), nil, int64(30)}),
		core.NewColumn("score", core.KindFloat, []any{1.0, 2.0, 3.0, 4.0}),
		core.NewColumn("grade", core.KindString, []any{"B", "A", "C", "A"}),
		core.NewColumn("city", core.KindString, []any{"Paris", nil, "Lyon", "Paris"}),
	)
	require.NoError(t, err)
	return tbl
}

func TestParseEncodeMethod(t *testing.T) {
	for _, in := range []string{"one-hot", "OneHot", "one_hot_encoding", "One Hot", "onehot_encoding"} {
		m, err := ParseEncodeMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, OneHotEncoding, m, in)
	}
	for _, in := range []string{"label", "Label-Encoding", "LabelEncoding"} {
		m, err := ParseEncodeMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, LabelEncoding, m, in)
	}
	_, err := ParseEncodeMethod("target")
	assert.ErrorIs(t, err, core.ErrUnsupportedMethod)
}

func TestNormalize_ZScore(t *testing.T) {
	tbl := sample(t)
	out, info, err := Normalize(tbl, NormalizeOptions{Columns: []string{"age", "score"}, Method: features.ScaleStandard})
	require.NoError(t, err)

	age, _ := out.Column("age")
	assert.Equal(t, core.KindFloat, age.Kind)
	assert.Nil(t, age.Values[2], "nulls are preserved")
	assert.InDelta(t, -math.Sqrt(1.5), age.Values[0].(float64), 1e-12)

	assert.Equal(t, "Z-Score Standardization", info.MethodName)
	assert.InDelta(t, 20.0, info.OriginalStats["age"].Mean, 1e-12)
	assert.InDelta(t, 0.0, info.NewStats["score"].Mean, 1e-12)
	assert.Nil(t, info.FeatureRange)

	orig, _ := tbl.Column("age")
	assert.Equal(t, int64(10), orig.Values[0])
}

func TestNormalize_MinMaxRange(t *testing.T) {
	fr := [2]float64{-1, 1}
	out, info, err := Normalize(sample(t), NormalizeOptions{Columns: []string{"score"}, Method: features.ScaleMinMax, FeatureRange: &fr})
	require.NoError(t, err)

	score, _ := out.Column("score")
	assert.InDelta(t, -1.0, score.Values[0].(float64), 1e-12)
	assert.InDelta(t, 1.0, score.Values[3].(float64), 1e-12)
	assert.Equal(t, "Min-Max Scaling (-1.0, 1.0)", info.MethodName)
	require.NotNil(t, info.FeatureRange)

	_, _, err = Normalize(sample(t), NormalizeOptions{Columns: []string{"score"}, Method: features.ScaleMinMax, FeatureRange: &[2]float64{1, 1}})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestNormalize_Robust(t *testing.T) {
	out, info, err := Normalize(sample(t), NormalizeOptions{Columns: []string{"score"}, Method: features.ScaleRobust})
	require.NoError(t, err)
	score, _ := out.Column("score")
	assert.InDelta(t, 1.0, score.Values[3].(float64), 1e-12)
	assert.Equal(t, "Robust Scaling", info.MethodName)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts NormalizeOptions
		want error
	}{
		{"non numeric", NormalizeOptions{Columns: []string{"score", "grade"}, Method: features.ScaleStandard}, core.ErrNonNumericColumn},
		{"missing column", NormalizeOptions{Columns: []string{"nope"}, Method: features.ScaleStandard}, core.ErrMissingColumns},
		{"unknown method", NormalizeOptions{Columns: []string{"score"}, Method: "log"}, core.ErrUnsupportedMethod},
		{"no columns", NormalizeOptions{Method: features.ScaleStandard}, core.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Normalize(sample(t), tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_LabelRoundTrip(t *testing.T) {
	tbl := sample(t)
	out, info, err := Encode(tbl, EncodeOptions{Columns: []string{"grade", "city"}, Method: "label"})
	require.NoError(t, err)

	for _, name := range []string{"grade", "city"} {
		enc := info.Encodings[name]
		orig, _ := tbl.Column(name)
		coded, _ := out.Column(name)
		assert.Equal(t, core.KindInt, coded.Kind)
		labels := features.Stringify(orig.Values, "nan")
		for i, label := range labels {
			code, ok := enc.Mapping.Lookup(label)
			require.True(t, ok)
			assert.Equal(t, int64(code), coded.Values[i])
		}
	}

	assert.Equal(t, Mapping{{"Lyon", 0}, {"Paris", 1}, {"nan", 2}}, info.Encodings["city"].Mapping)
	assert.Nil(t, info.DropFirst)
	assert.Equal(t, EncodingSummary{TotalColumnsEncoded: 2, LabelEncoded: 2}, info.Summary)
	assert.Equal(t, [2]int{4, 4}, info.NewShape)

	b, err := json.Marshal(info.Encodings["grade"])
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"label_encoding","mapping":{"A":0,"B":1,"C":2}}`, string(b))
}

func TestEncode_OneHotDropFirst(t *testing.T) {
	out, info, err := Encode(sample(t), EncodeOptions{Columns: []string{"grade"}, Method: "one-hot", DropFirst: true})
	require.NoError(t, err)

	assert.False(t, out.HasColumn("grade"))
	assert.Equal(t, []string{"age", "score", "city", "grade_B", "grade_C"}, out.ColumnNames())
	b, _ := out.Column("grade_B")
	assert.Equal(t, []any{int64(1), int64(0), int64(0), int64(0)}, b.Values)

	enc := info.Encodings["grade"]
	assert.Equal(t, []string{"grade_B", "grade_C"}, enc.NewColumns)
	assert.Equal(t, []any{"B", "A", "C"}, enc.OriginalCategories)
	assert.Equal(t, EncodingSummary{
		TotalColumnsEncoded: 1, OneHotEncoded: 1, NewColumnsAdded: 2, ColumnsRemoved: 1,
	}, info.Summary)
	assert.Equal(t, [2]int{4, 5}, info.NewShape)
}

func TestEncode_OneHotNullsGetNoColumn(t *testing.T) {
	out, _, err := Encode(sample(t), EncodeOptions{Columns: []string{"city"}, Method: OneHotEncoding})
	require.NoError(t, err)
	lyon, _ := out.Column("city_Lyon")
	paris, _ := out.Column("city_Paris")
	assert.Equal(t, []any{int64(0), int64(0), int64(1), int64(0)}, lyon.Values)
	assert.Equal(t, []any{int64(1), int64(0), int64(0), int64(1)}, paris.Values)
}

func TestEncode_OneHotRejectsNameCollision(t *testing.T) {
	tbl, err := core.NewTable(
		core.NewColumn("color", core.KindString, []any{"red", "blue", "red"}),
		core.NewColumn("color_red", core.KindFloat, []any{0.5, 0.25, 0.75}),
	)
	require.NoError(t, err)
	opts := EncodeOptions{Columns: []string{"color"}, Method: OneHotEncoding}

	_, _, err = Encode(tbl, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	assert.Contains(t, err.Error(), `"color_red"`)

	_, err = PreviewEncode(tbl, opts)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	kept, _ := tbl.Column("color_red")
	assert.Equal(t, []any{0.5, 0.25, 0.75}, kept.Values, "existing column is untouched")

	// blue sorts first, so drop_first still generates color_red.
	opts.DropFirst = true
	_, _, err = Encode(tbl, opts)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSession_HistoryIsAppendOnly(t *testing.T) {
	s := NewSession(sample(t))

	_, err := s.Normalize(NormalizeOptions{Columns: []string{"score"}, Method: features.ScaleStandard})
	require.NoError(t, err)
	_, err = s.Encode(EncodeOptions{Columns: []string{"grade"}, Method: LabelEncoding})
	require.NoError(t, err)
	_, err = s.Encode(EncodeOptions{Columns: []string{"nope"}, Method: LabelEncoding})
	require.Error(t, err)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, RecordNormalization, history[0].Type)
	assert.Equal(t, RecordEncoding, history[1].Type)
	assert.NotNil(t, history[1].Info())

	grade, _ := s.Table().Column("grade")
	assert.Equal(t, core.KindInt, grade.Kind)
}

func TestPreviewNormalize_DoesNotMutate(t *testing.T) {
	values := make([]float64, 500)
	for i := range values {
		values[i] = float64(i)
	}
	tbl, err := core.NewTable(core.NewFloatColumn("x", values))
	require.NoError(t, err)

	p, err := PreviewNormalize(tbl, NormalizeOptions{Columns: []string{"x"}, Method: features.ScaleMinMax}, 0, 42)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreviewSize, p.SampleSize)
	assert.InDelta(t, 0.0, p.PreviewStats["x"].Min, 1e-12)
	assert.InDelta(t, 1.0, p.PreviewStats["x"].Max, 1e-12)

	again, err := PreviewNormalize(tbl, NormalizeOptions{Columns: []string{"x"}, Method: features.ScaleMinMax}, 0, 42)
	require.NoError(t, err)
	assert.Equal(t, p.OriginalStats, again.OriginalStats, "same seed, same sample")

	x, _ := tbl.Column("x")
	assert.Equal(t, 499.0, x.Values[499])
}

func TestPreviewEncode(t *testing.T) {
	tbl := sample(t)

	label, err := PreviewEncode(tbl, EncodeOptions{Columns: []string{"grade"}, Method: "LabelEncoding"})
	require.NoError(t, err)
	assert.Equal(t, Mapping{{"A", 0}, {"B", 1}, {"C", 2}}, label.Mappings["grade"].Mapping)
	assert.Equal(t, 1, label.EstimatedNewColumns)

	onehot, err := PreviewEncode(tbl, EncodeOptions{Columns: []string{"city"}, Method: "onehot", DropFirst: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"city_Paris"}, onehot.Mappings["city"].NewColumns)
	assert.Equal(t, []any{"Paris", "Lyon"}, onehot.Mappings["city"].OriginalValues)
	assert.Equal(t, 1, onehot.EstimatedNewColumns)

	_, _, err = Encode(tbl, EncodeOptions{Columns: []string{"city"}, Method: "onehot", DropFirst: true})
	require.NoError(t, err)
}
