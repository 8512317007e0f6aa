// Package features holds the fitted encode and scale primitives shared by
// column transformation, model training and inference. Every type here
// round-trips through JSON and gob so a fitted instance can be persisted
// and replayed.
package features

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/leapstack-labs/leapml/internal/profile"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// LabelEncoder maps string categories to dense integer codes. Classes are
// kept in ascending lexical order; the code of a class is its index.
type LabelEncoder struct {
	Classes []string `json:"classes"`
	index   map[string]int
}

// FitLabelEncoder learns the sorted distinct classes of values.
func FitLabelEncoder(values []string) *LabelEncoder {
	seen := make(map[string]struct{}, len(values))
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}
}

// Index returns the code of class v.
func (e *LabelEncoder) Index(v string) (int, bool) {
	if e.index == nil {
		e.index = make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			e.index[c] = i
		}
	}
	i, ok := e.index[v]
	return i, ok
}

// Transform encodes values. Unseen classes map to code 0 and are returned
// in order of first appearance.
func (e *LabelEncoder) Transform(values []string) ([]int, []string) {
	codes := make([]int, len(values))
	var unseen []string
	for i, v := range values {
		code, ok := e.Index(v)
		if !ok && !slices.Contains(unseen, v) {
			unseen = append(unseen, v)
		}
		codes[i] = code
	}
	return codes, unseen
}

// Decode returns the class of code, or "" when out of range.
func (e *LabelEncoder) Decode(code int) string {
	if code < 0 || code >= len(e.Classes) {
		return ""
	}
	return e.Classes[code]
}

// Stringify renders cells as category labels, substituting missing for
// structural nulls.
func Stringify(values []any, missing string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if core.IsNull(v) {
			out[i] = missing
			continue
		}
		out[i] = core.FormatValue(v)
	}
	return out
}

// ScalerMethod selects the scaling rule.
type ScalerMethod string

// Scaling rules.
const (
	ScaleStandard ScalerMethod = "zscore"
	ScaleMinMax   ScalerMethod = "minmax"
	ScaleRobust   ScalerMethod = "robust"
)

// Scaler is a fitted per-column affine transform: (x - Center) / Scale,
// then mapped into [Low, High] for min-max scaling.
type Scaler struct {
	Method ScalerMethod `json:"method"`
	Center []float64    `json:"center"`
	Scale  []float64    `json:"scale"`
	Low    float64      `json:"low,omitempty"`
	High   float64      `json:"high,omitempty"`
}

// FitScaler fits one center and scale per column. NaN cells are ignored.
// A zero or undefined spread is replaced with 1 so constant columns map to
// the center.
func FitScaler(method ScalerMethod, columns [][]float64, low, high float64) *Scaler {
	s := &Scaler{
		Method: method,
		Center: make([]float64, len(columns)),
		Scale:  make([]float64, len(columns)),
		Low:    low,
		High:   high,
	}
	for j, col := range columns {
		present := make([]float64, 0, len(col))
		for _, v := range col {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		center, scale := 0.0, 1.0
		if len(present) > 0 {
			switch method {
			case ScaleMinMax:
				lo, hi := slices.Min(present), slices.Max(present)
				center, scale = lo, hi-lo
			case ScaleRobust:
				sort.Float64s(present)
				center = profile.Percentile(present, 0.5)
				scale = profile.Percentile(present, 0.75) - profile.Percentile(present, 0.25)
			default:
				center = stat.Mean(present, nil)
				scale = stat.PopStdDev(present, nil)
			}
		}
		if scale == 0 || !core.IsFinite(scale) {
			scale = 1
		}
		s.Center[j], s.Scale[j] = center, scale
	}
	return s
}

// Apply transforms value x of column j. NaN stays NaN.
func (s *Scaler) Apply(j int, x float64) float64 {
	z := (x - s.Center[j]) / s.Scale[j]
	if s.Method == ScaleMinMax {
		return z*(s.High-s.Low) + s.Low
	}
	return z
}

// Transform scales every value of column j.
func (s *Scaler) Transform(j int, values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Apply(j, v)
	}
	return out
}
