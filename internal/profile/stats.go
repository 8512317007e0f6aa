package profile

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// Percentile returns the p-th quantile (0..1) of sorted values using linear
// interpolation between closest ranks. It returns NaN for empty input.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Summary is the numeric summary of a column.
type Summary struct {
	Count  int
	Mean   float64
	Std    float64 // sample standard deviation
	Min    float64
	Max    float64
	Median float64
	Q25    float64
	Q75    float64
}

// Describe summarizes values. Every field except Count is NaN for empty input,
// and Std is NaN for a single value.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Std: nan, Min: nan, Max: nan, Median: nan, Q25: nan, Q75: nan}
	}
	sorted := slices.Clone(values)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) < 2 {
		std = math.NaN()
	}
	return Summary{
		Count:  len(values),
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: Percentile(sorted, 0.5),
		Q25:    Percentile(sorted, 0.25),
		Q75:    Percentile(sorted, 0.75),
	}
}

// Rounded returns the summary rounded to places decimals.
func (s Summary) Rounded(places int) Summary {
	return Summary{
		Count:  s.Count,
		Mean:   core.Round(s.Mean, places),
		Std:    core.Round(s.Std, places),
		Min:    core.Round(s.Min, places),
		Max:    core.Round(s.Max, places),
		Median: core.Round(s.Median, places),
		Q25:    core.Round(s.Q25, places),
		Q75:    core.Round(s.Q75, places),
	}
}

// MarshalJSON writes the summary with non-finite values as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	return core.MarshalObject(
		core.Field{Key: "mean", Value: core.Float(s.Mean)},
		core.Field{Key: "std", Value: core.Float(s.Std)},
		core.Field{Key: "min", Value: core.Float(s.Min)},
		core.Field{Key: "max", Value: core.Float(s.Max)},
		core.Field{Key: "median", Value: core.Float(s.Median)},
		core.Field{Key: "q25", Value: core.Float(s.Q25)},
		core.Field{Key: "q75", Value: core.Float(s.Q75)},
	)
}

// PopulationStd returns the standard deviation with n in the denominator.
func PopulationStd(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.PopStdDev(values, nil)
}

// Mode returns the most frequent value. Ties resolve to the smallest value
// in the natural order of the column; ok is false for empty input.
func Mode(values []any) (any, bool) {
	if len(values) == 0 {
		return nil, false
	}
	counts := make(map[string]int, len(values))
	first := make(map[string]any, len(values))
	for _, v := range values {
		k := uniqueKey(v)
		if _, ok := first[k]; !ok {
			first[k] = v
		}
		counts[k]++
	}
	var best any
	bestCount := 0
	for k, c := range counts {
		v := first[k]
		if c > bestCount || (c == bestCount && lessValue(v, best)) {
			best, bestCount = v, c
		}
	}
	return best, true
}

// lessValue orders numbers numerically and everything else by text.
func lessValue(a, b any) bool {
	fa, okA := core.ToFloat(a)
	fb, okB := core.ToFloat(b)
	if okA && okB {
		return fa < fb
	}
	if okA != okB {
		return okA
	}
	return core.FormatValue(a) < core.FormatValue(b)
}
