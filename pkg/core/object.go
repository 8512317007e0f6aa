package core

import (
	"bytes"
	"encoding/json"
)

// Field is one key of an ordered JSON object.
type Field struct {
	Key   string
	Value any
}

// MarshalObject writes fields as a JSON object, keeping their order.
func MarshalObject(fields ...Field) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
