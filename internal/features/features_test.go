package features

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncoder_RoundTrip(t *testing.T) {
	values := []string{"paris", "lyon", "nice", "lyon", "paris"}
	enc := FitLabelEncoder(values)

	assert.Equal(t, []string{"lyon", "nice", "paris"}, enc.Classes)

	codes, unseen := enc.Transform(values)
	assert.Empty(t, unseen)
	for i, v := range values {
		assert.Equal(t, v, enc.Decode(codes[i]))
	}
}

func TestLabelEncoder_UnseenMapsToFirstClass(t *testing.T) {
	enc := FitLabelEncoder([]string{"b", "a"})
	codes, unseen := enc.Transform([]string{"b", "z", "z", "y"})
	assert.Equal(t, []int{1, 0, 0, 0}, codes)
	assert.Equal(t, []string{"z", "y"}, unseen)
}

func TestLabelEncoder_GobRoundTrip(t *testing.T) {
	enc := FitLabelEncoder([]string{"x", "y"})
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(enc))

	var got LabelEncoder
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))
	i, ok := got.Index("y")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
}

func TestStringify(t *testing.T) {
	got := Stringify([]any{"a", nil, int64(2), 1.0, math.NaN(), true}, "_MISSING_")
	assert.Equal(t, []string{"a", "_MISSING_", "2", "1.0", "_MISSING_", "True"}, got)
}

func TestFitScaler(t *testing.T) {
	col := []float64{1, 2, 3, 4, math.NaN()}

	tests := []struct {
		name   string
		method ScalerMethod
		low    float64
		high   float64
		in     float64
		want   float64
	}{
		{"standard", ScaleStandard, 0, 0, 2.5, 0},
		{"standard upper", ScaleStandard, 0, 0, 4, 1.5 / math.Sqrt(1.25)},
		{"minmax", ScaleMinMax, 0, 1, 4, 1},
		{"minmax custom range", ScaleMinMax, -1, 1, 1, -1},
		{"robust", ScaleRobust, 0, 0, 4, (4 - 2.5) / 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FitScaler(tt.method, [][]float64{col}, tt.low, tt.high)
			assert.InDelta(t, tt.want, s.Apply(0, tt.in), 1e-12)
			assert.True(t, math.IsNaN(s.Apply(0, math.NaN())))
		})
	}
}

func TestFitScaler_ConstantColumn(t *testing.T) {
	s := FitScaler(ScaleStandard, [][]float64{{7, 7, 7}}, 0, 0)
	assert.Equal(t, 1.0, s.Scale[0])
	assert.Equal(t, 0.0, s.Apply(0, 7))

	mm := FitScaler(ScaleMinMax, [][]float64{{7, 7}}, 0, 1)
	assert.Equal(t, 0.0, mm.Apply(0, 7))
}
