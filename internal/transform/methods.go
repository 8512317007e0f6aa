package transform

import (
	"strings"

	"github.com/leapstack-labs/leapml/internal/features"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// ParseNormalizeMethod validates a normalization method name.
func ParseNormalizeMethod(s string) (features.ScalerMethod, error) {
	switch m := features.ScalerMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case features.ScaleStandard, features.ScaleMinMax, features.ScaleRobust:
		return m, nil
	}
	return "", core.Errorf(core.CategoryUnsupportedMethod, "unknown normalization method: %s", s)
}

// EncodeMethod names an encoding.
type EncodeMethod string

// Encoding methods.
const (
	LabelEncoding  EncodeMethod = "label_encoding"
	OneHotEncoding EncodeMethod = "onehot_encoding"
)

// ParseEncodeMethod normalizes case and separators, so "One-Hot",
// "one_hot_encoding" and "onehot" all resolve to OneHotEncoding.
func ParseEncodeMethod(s string) (EncodeMethod, error) {
	m := strings.ToLower(strings.TrimSpace(s))
	m = strings.NewReplacer("-", "_", " ", "_").Replace(m)
	switch m {
	case "label", "label_encoding", "labelencoding":
		return LabelEncoding, nil
	case "onehot", "one_hot", "onehot_encoding", "one_hot_encoding":
		return OneHotEncoding, nil
	}
	return "", core.Errorf(core.CategoryUnsupportedMethod,
		"unknown encoding method: %s. Use 'label_encoding' or 'onehot_encoding'", s)
}

func methodName(m features.ScalerMethod, low, high float64) string {
	switch m {
	case features.ScaleMinMax:
		return "Min-Max Scaling (" + core.FormatFloat(low) + ", " + core.FormatFloat(high) + ")"
	case features.ScaleRobust:
		return "Robust Scaling"
	default:
		return "Z-Score Standardization"
	}
}
