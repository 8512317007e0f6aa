package core

import (
	"fmt"
	"time"
)

// Kind is the storage type of a column, the analogue of a dataframe dtype.
type Kind int

// Storage kinds.
const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "string"
	}
}

// IsNumeric reports whether the kind stores numbers.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// Column is a named sequence of cells. A nil cell (or a NaN float) is a
// structural null. Non-null cells hold int64, float64, bool, string or
// time.Time values.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn creates a column.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{Name: name, Kind: kind, Values: values}
}

// NewFloatColumn creates a float column; NaN entries become structural nulls.
func NewFloatColumn(name string, values []float64) *Column {
	out := make([]any, len(values))
	for i, v := range values {
		if v != v {
			continue
		}
		out[i] = v
	}
	return &Column{Name: name, Kind: KindFloat, Values: out}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.Values)
}

// Clone returns a deep copy of the column cells.
func (c *Column) Clone() *Column {
	values := make([]any, len(c.Values))
	copy(values, c.Values)
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// IsNull reports whether cell i is a structural null.
func (c *Column) IsNull(i int) bool {
	return IsNull(c.Values[i])
}

// NullCount returns the number of structural nulls.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if IsNull(v) {
			n++
		}
	}
	return n
}

// IsNumeric reports whether every non-null cell converts to a number.
// Numeric storage kinds always qualify; string columns qualify when every
// present value parses as a number. An all-null string column does not.
func (c *Column) IsNumeric() bool {
	if c.Kind.IsNumeric() {
		return true
	}
	if c.Kind != KindString {
		return false
	}
	seen := false
	for _, v := range c.Values {
		if IsNull(v) {
			continue
		}
		if _, ok := ToFloat(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// Floats returns the numeric value of every cell together with a validity
// mask. Nulls and non-numeric cells are invalid.
func (c *Column) Floats() ([]float64, []bool) {
	values := make([]float64, len(c.Values))
	valid := make([]bool, len(c.Values))
	for i, v := range c.Values {
		if f, ok := ToFloat(v); ok {
			values[i] = f
			valid[i] = true
		}
	}
	return values, valid
}

// Table is an ordered set of equally long, uniquely named columns.
// Operations return new tables and never mutate the receiver's cells.
type Table struct {
	columns []*Column
	index   map[string]int
}

// NewTable creates a table, validating column lengths and names.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col.Name)
		}
		if i > 0 && col.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), columns[0].Len())
		}
		t.index[col.Name] = i
		t.columns = append(t.columns, col)
	}
	return t, nil
}

func newTableUnchecked(columns []*Column) *Table {
	t := &Table{columns: columns, index: make(map[string]int, len(columns))}
	for i, col := range columns {
		t.index[col.Name] = i
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return t.columns[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Columns returns the columns in order. Callers must not mutate them.
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// MissingColumns returns the requested names absent from the table, in order.
func (t *Table) MissingColumns(names []string) []string {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		cols[i] = col.Clone()
	}
	return newTableUnchecked(cols)
}

// WithColumn returns a table where col replaces the column of the same name,
// or is appended when no such column exists.
func (t *Table) WithColumn(col *Column) *Table {
	cols := make([]*Column, len(t.columns), len(t.columns)+1)
	copy(cols, t.columns)
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return newTableUnchecked(cols)
}

// DropColumn returns a table without the named column.
func (t *Table) DropColumn(name string) *Table {
	cols := make([]*Column, 0, len(t.columns))
	for _, col := range t.columns {
		if col.Name != name {
			cols = append(cols, col)
		}
	}
	return newTableUnchecked(cols)
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names []string) (*Table, error) {
	if missing := t.MissingColumns(names); len(missing) > 0 {
		return nil, MissingColumnsError(missing)
	}
	cols := make([]*Column, len(names))
	for i, name := range names {
		cols[i] = t.columns[t.index[name]]
	}
	return newTableUnchecked(cols), nil
}

// RenameColumns returns a table with every column renamed through fn.
func (t *Table) RenameColumns(fn func(string) string) (*Table, error) {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		cols[i] = &Column{Name: fn(col.Name), Kind: col.Kind, Values: col.Values}
	}
	return NewTable(cols...)
}

// SelectRows returns a table holding the given row positions, in order.
func (t *Table) SelectRows(rows []int) *Table {
	cols := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		values := make([]any, len(rows))
		for j, r := range rows {
			values[j] = col.Values[r]
		}
		cols[i] = &Column{Name: col.Name, Kind: col.Kind, Values: values}
	}
	return newTableUnchecked(cols)
}

// FilterRows returns a table holding the rows where keep is true.
func (t *Table) FilterRows(keep []bool) *Table {
	rows := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			rows = append(rows, i)
		}
	}
	return t.SelectRows(rows)
}

// Slice returns up to limit rows starting at offset.
func (t *Table) Slice(offset, limit int) *Table {
	n := t.NumRows()
	if offset > n {
		offset = n
	}
	end := offset + limit
	if limit < 0 || end > n {
		end = n
	}
	rows := make([]int, 0, end-offset)
	for i := offset; i < end; i++ {
		rows = append(rows, i)
	}
	return t.SelectRows(rows)
}

// Records returns the rows as JSON-safe maps: structural nulls and
// non-finite floats become nil and times are formatted as RFC 3339.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, t.NumRows())
	for r := range records {
		row := make(map[string]any, len(t.columns))
		for _, col := range t.columns {
			row[col.Name] = CleanValue(col.Values[r])
		}
		records[r] = row
	}
	return records
}

// CleanValue converts a cell to a JSON-safe value.
func CleanValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if !IsFinite(x) {
			return nil
		}
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return v
	}
}
