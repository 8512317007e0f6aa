package profile

import (
	"sort"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// CountValues returns the top limit values by count, skipping structural
// nulls. Ties keep first-appearance order. A limit <= 0 returns all values.
func CountValues(values []any, limit int) Frequencies {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if core.IsNull(v) {
			continue
		}
		k := core.FormatValue(v)
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	out := make(Frequencies, len(order))
	for i, k := range order {
		out[i] = ValueCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
