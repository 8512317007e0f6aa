package native

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/core"
)

// ReadJSON decodes either an array of records or a column-oriented object
// ({"col": [..]} or {"col": {"0": ..}}). Column order follows first
// appearance in the document.
func ReadJSON(r io.Reader) (*core.Table, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	var b columnBuilder
	switch tok {
	case json.Delim('['):
		row := 0
		for dec.More() {
			keys, raws, err := decodeObject(dec)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", row, err)
			}
			for i, k := range keys {
				v, err := decodeScalar(raws[i])
				if err != nil {
					return nil, fmt.Errorf("record %d, field %q: %w", row, k, err)
				}
				b.set(k, row, v)
			}
			row++
		}
		b.rows = row
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
			values, err := decodeColumnValues(raw)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
			for i, v := range values {
				b.set(key, i, v)
			}
			b.rows = max(b.rows, len(values))
		}
	default:
		return nil, fmt.Errorf("unexpected JSON token %v: expected array or object", tok)
	}

	return b.table()
}

type columnBuilder struct {
	names []string
	cells map[string]map[int]any
	rows  int
}

func (b *columnBuilder) set(name string, row int, v any) {
	if b.cells == nil {
		b.cells = make(map[string]map[int]any)
	}
	col, ok := b.cells[name]
	if !ok {
		col = make(map[int]any)
		b.cells[name] = col
		b.names = append(b.names, name)
	}
	col[row] = v
}

func (b *columnBuilder) table() (*core.Table, error) {
	columns := make([]*core.Column, len(b.names))
	for i, name := range b.names {
		values := make([]any, b.rows)
		for row, v := range b.cells[name] {
			values[row] = v
		}
		columns[i] = adapter.BuildColumn(name, values)
	}
	return core.NewTable(columns...)
}

func decodeObject(dec *json.Decoder) ([]string, []json.RawMessage, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	var raws []json.RawMessage
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		raws = append(raws, raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, raws, nil
}

func decodeColumnValues(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		values := make([]any, len(items))
		for i, item := range items {
			v, err := decodeScalar(item)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	_, raws, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(raws))
	for i, item := range raws {
		v, err := decodeScalar(item)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// decodeScalar maps a JSON value to a cell. Nested values are kept as their
// compact JSON text.
func decodeScalar(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil, bool, string:
		return x, nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}
}

// WriteJSON encodes the table as an indented array of records, keeping the
// column order. Nulls and non-finite floats are written as null.
func WriteJSON(w io.Writer, t *core.Table) error {
	bw := bufio.NewWriter(w)
	cols := t.Columns()
	n := t.NumRows()

	_, _ = bw.WriteString("[")
	for r := 0; r < n; r++ {
		if r > 0 {
			_, _ = bw.WriteString(",")
		}
		_, _ = bw.WriteString("\n  {")
		for i, col := range cols {
			if i > 0 {
				_, _ = bw.WriteString(",")
			}
			key, err := json.Marshal(col.Name)
			if err != nil {
				return err
			}
			val, err := json.Marshal(jsonCell(col.Values[r]))
			if err != nil {
				return err
			}
			_, _ = bw.WriteString("\n    ")
			_, _ = bw.Write(key)
			_, _ = bw.WriteString(": ")
			_, _ = bw.Write(val)
		}
		_, _ = bw.WriteString("\n  }")
	}
	if n > 0 {
		_, _ = bw.WriteString("\n")
	}
	_, _ = bw.WriteString("]\n")
	return bw.Flush()
}

func jsonCell(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
