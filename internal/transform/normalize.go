package transform

import (
	"math"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// DefaultFeatureRange is the min-max target range.
var DefaultFeatureRange = [2]float64{0, 1}

// NormalizeOptions configures Normalize.
type NormalizeOptions struct {
	Columns []string
	Method  features.ScalerMethod
	// FeatureRange is used by min-max scaling; nil means DefaultFeatureRange.
	FeatureRange *[2]float64
}

// ColumnStats are the audit statistics captured around a normalization.
type ColumnStats struct {
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
}

// MarshalJSON writes non-finite values as null.
func (s ColumnStats) MarshalJSON() ([]byte, error) {
	return core.MarshalObject(
		core.Field{Key: "mean", Value: core.Float(s.Mean)},
		core.Field{Key: "std", Value: core.Float(s.Std)},
		core.Field{Key: "min", Value: core.Float(s.Min)},
		core.Field{Key: "max", Value: core.Float(s.Max)},
		core.Field{Key: "median", Value: core.Float(s.Median)},
	)
}

func columnStats(values []float64) ColumnStats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	s := profile.Describe(present)
	return ColumnStats{Mean: s.Mean, Std: s.Std, Min: s.Min, Max: s.Max, Median: s.Median}
}

// NormalizationInfo describes one normalization.
type NormalizationInfo struct {
	Type          string                 `json:"type"`
	Method        features.ScalerMethod  `json:"method"`
	MethodName    string                 `json:"method_name"`
	Columns       []string               `json:"columns"`
	OriginalStats map[string]ColumnStats `json:"original_stats"`
	NewStats      map[string]ColumnStats `json:"new_stats"`
	FeatureRange  *[2]float64            `json:"feature_range,omitempty"`
}

// Normalize scales the given columns. Every column must exist and be
// numeric; the result columns are float. Nulls are preserved.
func Normalize(t *core.Table, opts NormalizeOptions) (*core.Table, *NormalizationInfo, error) {
	if len(opts.Columns) == 0 {
		return nil, nil, core.Errorf(core.CategoryInvalidArgument, "no columns specified for normalization")
	}
	method, err := ParseNormalizeMethod(string(opts.Method))
	if err != nil {
		return nil, nil, err
	}
	sel, err := t.Select(opts.Columns)
	if err != nil {
		return nil, nil, err
	}

	raw := make([][]float64, len(opts.Columns))
	for j, col := range sel.Columns() {
		if !col.IsNumeric() {
			return nil, nil, core.Errorf(core.CategoryNonNumericColumn, "column '%s' is not numerical", col.Name)
		}
		values, valid := col.Floats()
		for i := range values {
			if !valid[i] {
				values[i] = math.NaN()
			}
		}
		raw[j] = values
	}

	low, high := 0.0, 0.0
	info := &NormalizationInfo{
		Type:          "normalization",
		Method:        method,
		Columns:       opts.Columns,
		OriginalStats: make(map[string]ColumnStats, len(opts.Columns)),
		NewStats:      make(map[string]ColumnStats, len(opts.Columns)),
	}
	if method == features.ScaleMinMax {
		fr := DefaultFeatureRange
		if opts.FeatureRange != nil {
			fr = *opts.FeatureRange
		}
		if fr[0] >= fr[1] {
			return nil, nil, core.Errorf(core.CategoryInvalidArgument,
				"minimum of desired feature range must be smaller than maximum, got (%s, %s)",
				core.FormatFloat(fr[0]), core.FormatFloat(fr[1]))
		}
		low, high = fr[0], fr[1]
		info.FeatureRange = &fr
	}
	info.MethodName = methodName(method, low, high)

	scaler := features.FitScaler(method, raw, low, high)
	out := t
	for j, name := range opts.Columns {
		scaled := scaler.Transform(j, raw[j])
		info.OriginalStats[name] = columnStats(raw[j])
		info.NewStats[name] = columnStats(scaled)
		out = out.WithColumn(core.NewFloatColumn(name, scaled))
	}
	return out, info, nil
}
