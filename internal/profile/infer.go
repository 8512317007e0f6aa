package profile

import (
	"strings"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// DataType is the semantic type of a column.
type DataType string

// Semantic types.
const (
	TypeNumerical   DataType = "numerical"
	TypeCategorical DataType = "categorical"
	TypeText        DataType = "text"
	TypeDatetime    DataType = "datetime"
	TypeBoolean     DataType = "boolean"
)

const (
	datetimeSample       = 100
	categoricalRatio     = 0.5
	categoricalMaxUnique = 100
)

// InferType classifies values, which must already exclude missing cells.
// kind is the storage kind of the column the values came from.
//
// Rules are applied in order: boolean, numerical, datetime, categorical,
// text. An empty input is text.
func InferType(kind core.Kind, values []any) DataType {
	if len(values) == 0 {
		return TypeText
	}
	if kind == core.KindBool || allBooleanTokens(values) {
		return TypeBoolean
	}
	if kind.IsNumeric() || allNumeric(values) {
		return TypeNumerical
	}
	if kind == core.KindTime || allDatetime(values) {
		return TypeDatetime
	}
	unique := UniqueCount(values)
	if float64(unique)/float64(len(values)) < categoricalRatio && unique < categoricalMaxUnique {
		return TypeCategorical
	}
	return TypeText
}

func allBooleanTokens(values []any) bool {
	for _, v := range values {
		switch x := v.(type) {
		case bool:
		case int64:
			if x != 0 && x != 1 {
				return false
			}
		case float64:
			if x != 0 && x != 1 {
				return false
			}
		case string:
			s := strings.ToLower(x)
			if s != "true" && s != "false" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func allNumeric(values []any) bool {
	for _, v := range values {
		if _, ok := core.ToFloat(v); !ok {
			return false
		}
	}
	return true
}

func allDatetime(values []any) bool {
	n := min(len(values), datetimeSample)
	for _, v := range values[:n] {
		s, ok := v.(string)
		if !ok {
			return false
		}
		if _, ok := core.ParseTime(s); !ok {
			return false
		}
	}
	return true
}

// UniqueCount returns the number of distinct values by their text form.
func UniqueCount(values []any) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[uniqueKey(v)] = struct{}{}
	}
	return len(seen)
}

// uniqueKey folds numerically equal cells together so 1 and 1.0 count once.
func uniqueKey(v any) string {
	switch x := v.(type) {
	case int64:
		return core.FormatFloat(float64(x))
	default:
		return core.FormatValue(x)
	}
}
