package core

import "strconv"

// Float is a float64 that serializes NaN and infinities as null.
// Every floating result leaving the core uses it.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	if !IsFinite(float64(f)) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'g', -1, 64), nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Float) MarshalYAML() (any, error) {
	if !IsFinite(float64(f)) {
		return nil, nil
	}
	return float64(f), nil
}

// Floats converts a slice of float64.
func Floats(values []float64) []Float {
	out := make([]Float, len(values))
	for i, v := range values {
		out[i] = Float(v)
	}
	return out
}

// FloatPtr returns a pointer to f, or nil when f is not finite.
func FloatPtr(f float64) *Float {
	if !IsFinite(f) {
		return nil
	}
	v := Float(f)
	return &v
}
