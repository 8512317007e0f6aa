package native

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapml/pkg/core"
)

type arffAttribute struct {
	name string
	typ  string
}

// ReadARFF decodes an ARFF stream permissively. Cells are kept verbatim,
// so markers such as "?" stay visible to the missing-value detector.
// Numeric attributes are converted only when more than 90% of their cells
// parse; date attributes turn unparsable cells into nulls.
func ReadARFF(r io.Reader) (*core.Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var attrs []arffAttribute
	inData := false
	var rows [][]string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		if !inData {
			upper := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(upper, "@ATTRIBUTE"):
				attr, ok := parseAttribute(line[len("@ATTRIBUTE"):])
				if ok {
					attrs = append(attrs, attr)
				}
			case upper == "@DATA":
				inData = true
			}
			continue
		}
		rows = append(rows, splitARFFRow(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan ARFF: %w", err)
	}
	if !inData {
		return nil, fmt.Errorf("no @DATA section found")
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("no @ATTRIBUTE declarations found")
	}

	cells := make([][]string, len(attrs))
	present := make([][]bool, len(attrs))
	for n, row := range rows {
		if len(row) > len(attrs) {
			return nil, fmt.Errorf("data row %d: %d values for %d attributes", n+1, len(row), len(attrs))
		}
		for i := range attrs {
			if i < len(row) {
				cells[i] = append(cells[i], row[i])
				present[i] = append(present[i], true)
			} else {
				cells[i] = append(cells[i], "")
				present[i] = append(present[i], false)
			}
		}
	}

	columns := make([]*core.Column, len(attrs))
	for i, attr := range attrs {
		columns[i] = arffColumn(attr, cells[i], present[i])
	}
	return core.NewTable(columns...)
}

func parseAttribute(rest string) (arffAttribute, bool) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return arffAttribute{}, false
	}
	var name string
	if q := rest[0]; q == '\'' || q == '"' {
		end := strings.IndexByte(rest[1:], q)
		if end < 0 {
			return arffAttribute{}, false
		}
		name = rest[1 : end+1]
		rest = rest[end+2:]
	} else {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return arffAttribute{}, false
		}
		name, rest = rest[:i], rest[i+1:]
	}
	typ := strings.TrimSpace(rest)
	if typ == "" {
		return arffAttribute{}, false
	}
	return arffAttribute{name: name, typ: typ}, true
}

// splitARFFRow splits on commas outside quotes and strips the quotes.
// A trailing empty field is dropped.
func splitARFFRow(line string) []string {
	var values []string
	var cur strings.Builder
	inQuotes := false
	for _, ch := range line {
		switch {
		case ch == '\'' || ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			values = append(values, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		values = append(values, strings.TrimSpace(cur.String()))
	}
	return values
}

func arffColumn(attr arffAttribute, cells []string, present []bool) *core.Column {
	typ := strings.ToLower(attr.typ)
	values := make([]any, len(cells))

	switch {
	case strings.Contains(typ, "numeric") || strings.Contains(typ, "real") || strings.Contains(typ, "integer"):
		parsed := 0
		floats := make([]float64, len(cells))
		ok := make([]bool, len(cells))
		for i, c := range cells {
			if f, err := strconv.ParseFloat(c, 64); err == nil && present[i] {
				floats[i], ok[i] = f, true
				parsed++
			}
		}
		if float64(parsed) > float64(len(cells))*0.9 {
			if parsed == len(cells) && all(cells, isInt) {
				for i, c := range cells {
					values[i], _ = strconv.ParseInt(c, 10, 64)
				}
				return core.NewColumn(attr.name, core.KindInt, values)
			}
			for i := range cells {
				values[i] = nil
				if ok[i] {
					values[i] = floats[i]
				}
			}
			return core.NewColumn(attr.name, core.KindFloat, values)
		}
	case strings.HasPrefix(typ, "date"):
		for i, c := range cells {
			if t, ok := core.ParseTime(c); ok && present[i] {
				values[i] = t
			}
		}
		return core.NewColumn(attr.name, core.KindTime, values)
	}

	for i, c := range cells {
		if present[i] {
			values[i] = c
		}
	}
	return core.NewColumn(attr.name, core.KindString, values)
}
