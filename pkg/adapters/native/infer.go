package native

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// InferColumn builds a typed column from raw text cells. Cells in nulls
// become structural nulls. The narrowest kind that accepts every remaining
// cell wins: int, then float, then bool, then string.
func InferColumn(name string, cells []string, nulls map[string]bool) *core.Column {
	values := make([]any, len(cells))
	present := make([]string, 0, len(cells))
	for i, c := range cells {
		if nulls[c] {
			continue
		}
		values[i] = c
		present = append(present, c)
	}

	switch {
	case len(present) == 0:
		return core.NewColumn(name, core.KindFloat, values)
	case all(present, isInt):
		convert(values, func(s string) any {
			n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			return n
		})
		return core.NewColumn(name, core.KindInt, values)
	case all(present, isFloat):
		convert(values, func(s string) any {
			f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return f
		})
		return core.NewColumn(name, core.KindFloat, values)
	case all(present, isBool):
		convert(values, func(s string) any { return strings.EqualFold(s, "true") })
		return core.NewColumn(name, core.KindBool, values)
	default:
		return core.NewColumn(name, core.KindString, values)
	}
}

func all(cells []string, pred func(string) bool) bool {
	for _, c := range cells {
		if !pred(c) {
			return false
		}
	}
	return true
}

func convert(values []any, fn func(string) any) {
	for i, v := range values {
		if s, ok := v.(string); ok {
			values[i] = fn(s)
		}
	}
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func isBool(s string) bool {
	switch s {
	case "True", "TRUE", "true", "False", "FALSE", "false":
		return true
	}
	return false
}
