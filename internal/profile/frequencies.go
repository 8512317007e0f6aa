package profile

import "github.com/leapstack-labs/leapml/pkg/core"

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string
	Count int
}

// Frequencies is a frequency table ordered by descending count. It encodes
// as a JSON object whose keys keep that order.
type Frequencies []ValueCount

// MarshalJSON implements json.Marshaler.
func (f Frequencies) MarshalJSON() ([]byte, error) {
	fields := make([]core.Field, len(f))
	for i, vc := range f {
		fields[i] = core.Field{Key: vc.Value, Value: vc.Count}
	}
	return core.MarshalObject(fields...)
}

// Map returns the table as a plain map.
func (f Frequencies) Map() map[string]int {
	m := make(map[string]int, len(f))
	for _, vc := range f {
		m[vc.Value] = vc.Count
	}
	return m
}
