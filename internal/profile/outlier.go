package profile

import (
	"math"
	"slices"
	"sort"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// OutlierMethod selects an outlier detection rule.
type OutlierMethod string

// Outlier methods.
const (
	MethodIQR    OutlierMethod = "iqr"
	MethodZScore OutlierMethod = "zscore"
	MethodRange  OutlierMethod = "range"
)

// Detection defaults.
const (
	DefaultIQRMultiplier   = 1.5
	DefaultZScoreThreshold = 3.0
	maxOutlierIndices      = 100
)

// ParseOutlierMethod validates a method name.
func ParseOutlierMethod(s string) (OutlierMethod, error) {
	switch m := OutlierMethod(s); m {
	case MethodIQR, MethodZScore, MethodRange:
		return m, nil
	}
	return "", core.Errorf(core.CategoryUnsupportedMethod, "unsupported outlier method %q", s)
}

// OutlierReport is the result of one detection pass over a column.
type OutlierReport struct {
	Method OutlierMethod
	// Numeric is false when the column had no numeric cells to examine.
	Numeric bool
	Count   int
	// Indices holds the first outlier positions in column order.
	Indices []int
	// Mask is aligned with the column.
	Mask []bool

	Q1, Q3, IQR  float64
	Lower, Upper float64
	Multiplier   float64

	Mean, Std, Threshold float64

	Min, Max *float64
}

// MarshalJSON writes the method-specific fields.
func (r *OutlierReport) MarshalJSON() ([]byte, error) {
	indices := r.Indices
	if indices == nil {
		indices = []int{}
	}
	fields := []core.Field{{Key: "method", Value: r.Method}}
	if r.Numeric {
		switch r.Method {
		case MethodIQR:
			fields = append(fields,
				core.Field{Key: "lower_bound", Value: core.Float(r.Lower)},
				core.Field{Key: "upper_bound", Value: core.Float(r.Upper)},
				core.Field{Key: "q1", Value: core.Float(r.Q1)},
				core.Field{Key: "q3", Value: core.Float(r.Q3)},
				core.Field{Key: "iqr", Value: core.Float(r.IQR)},
				core.Field{Key: "multiplier", Value: r.Multiplier},
			)
		case MethodZScore:
			fields = append(fields,
				core.Field{Key: "mean", Value: core.Float(r.Mean)},
				core.Field{Key: "std", Value: core.Float(r.Std)},
				core.Field{Key: "threshold", Value: r.Threshold},
			)
		case MethodRange:
			fields = append(fields, core.Field{Key: "min_value", Value: r.Min}, core.Field{Key: "max_value", Value: r.Max})
		}
	}
	fields = append(fields, core.Field{Key: "outliers_count", Value: r.Count}, core.Field{Key: "outliers_indices", Value: indices})
	return core.MarshalObject(fields...)
}

// numericCells returns the numeric value of every cell not excluded by the
// missing mask, with a validity mask. ok is false when no cell is numeric or
// a present cell is not a number. excluded may be nil.
func numericCells(col *core.Column, excluded []bool) (values []float64, valid []bool, ok bool) {
	values, valid = col.Floats()
	n := 0
	for i := range valid {
		if excluded != nil && excluded[i] {
			valid[i] = false
			continue
		}
		if !valid[i] && !core.IsNull(col.Values[i]) {
			return values, valid, false
		}
		if valid[i] {
			n++
		}
	}
	return values, valid, n > 0
}

func subset(values []float64, valid []bool) []float64 {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			out = append(out, v)
		}
	}
	return out
}

func newReport(method OutlierMethod, n int) *OutlierReport {
	return &OutlierReport{Method: method, Mask: make([]bool, n), Indices: []int{}}
}

func (r *OutlierReport) flag(i int) {
	r.Mask[i] = true
	r.Count++
	if len(r.Indices) < maxOutlierIndices {
		r.Indices = append(r.Indices, i)
	}
}

// DetectIQR flags cells outside [Q1 - k*IQR, Q3 + k*IQR].
func DetectIQR(col *core.Column, excluded []bool, k float64) *OutlierReport {
	r := newReport(MethodIQR, col.Len())
	r.Multiplier = k
	values, valid, ok := numericCells(col, excluded)
	if !ok {
		return r
	}
	r.Numeric = true
	sorted := subset(values, valid)
	sort.Float64s(sorted)
	r.Q1 = Percentile(sorted, 0.25)
	r.Q3 = Percentile(sorted, 0.75)
	r.IQR = r.Q3 - r.Q1
	r.Lower = r.Q1 - k*r.IQR
	r.Upper = r.Q3 + k*r.IQR
	for i, v := range values {
		if valid[i] && (v < r.Lower || v > r.Upper) {
			r.flag(i)
		}
	}
	return r
}

// DetectZScore flags cells whose absolute z-score exceeds threshold, using
// the sample standard deviation. A zero spread flags nothing.
func DetectZScore(col *core.Column, excluded []bool, threshold float64) *OutlierReport {
	r := newReport(MethodZScore, col.Len())
	r.Threshold = threshold
	values, valid, ok := numericCells(col, excluded)
	if !ok {
		return r
	}
	r.Numeric = true
	s := Describe(subset(values, valid))
	r.Mean, r.Std = s.Mean, s.Std
	if r.Std == 0 || math.IsNaN(r.Std) {
		return r
	}
	for i, v := range values {
		if valid[i] && math.Abs(v-r.Mean)/r.Std > threshold {
			r.flag(i)
		}
	}
	return r
}

// DetectRange flags cells below lo or above hi. Either bound may be nil.
func DetectRange(col *core.Column, excluded []bool, lo, hi *float64) *OutlierReport {
	r := newReport(MethodRange, col.Len())
	r.Min, r.Max = lo, hi
	values, valid, ok := numericCells(col, excluded)
	if !ok {
		return r
	}
	r.Numeric = true
	for i, v := range values {
		if !valid[i] {
			continue
		}
		if (lo != nil && v < *lo) || (hi != nil && v > *hi) {
			r.flag(i)
		}
	}
	return r
}

// Detect dispatches to the named method with default parameters.
func Detect(method OutlierMethod, col *core.Column, excluded []bool, lo, hi *float64) (*OutlierReport, error) {
	switch method {
	case MethodIQR:
		return DetectIQR(col, excluded, DefaultIQRMultiplier), nil
	case MethodZScore:
		return DetectZScore(col, excluded, DefaultZScoreThreshold), nil
	case MethodRange:
		return DetectRange(col, excluded, lo, hi), nil
	}
	return nil, core.Errorf(core.CategoryUnsupportedMethod, "unsupported outlier method %q", method)
}

// Inliers returns the numeric cells that are present and not flagged.
func (r *OutlierReport) Inliers(col *core.Column, excluded []bool) []float64 {
	values, valid, _ := numericCells(col, excluded)
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] && !r.Mask[i] {
			out = append(out, v)
		}
	}
	return slices.Clip(out)
}
