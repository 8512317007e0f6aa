package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters
// that decode files through an embedded SQL engine.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// Exec executes a SQL statement that doesn't return rows.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string, args ...any) error {
	if b.DB == nil {
		return fmt.Errorf("database connection not established")
	}
	_, err := b.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// QueryTable executes a query and materializes the result as a table.
func (b *BaseSQLAdapter) QueryTable(ctx context.Context, sqlStr string, args ...any) (*core.Table, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	rows, err := b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return ScanTable(rows)
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ScanTable reads every row into a table. Column kinds are derived from the
// scanned values: integer columns stay int, mixed integer/float columns
// become float, and any column mixing other types is rendered as strings.
func ScanTable(rows *sql.Rows) (*core.Table, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	cells := make([][]any, len(names))
	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range dest {
			cells[i] = append(cells[i], normalizeDriverValue(v))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	columns := make([]*core.Column, len(names))
	for i, name := range names {
		if cells[i] == nil {
			cells[i] = []any{}
		}
		columns[i] = BuildColumn(name, cells[i])
	}
	return core.NewTable(columns...)
}

// BuildColumn derives a column kind from its values and coerces the cells
// to that kind.
func BuildColumn(name string, values []any) *core.Column {
	kind, mixed := detectKind(values)
	if !mixed {
		if kind == core.KindFloat {
			for i, v := range values {
				if f, ok := v.(int64); ok {
					values[i] = float64(f)
				}
			}
		}
		return core.NewColumn(name, kind, values)
	}
	for i, v := range values {
		if core.IsNull(v) {
			values[i] = nil
			continue
		}
		values[i] = core.FormatValue(v)
	}
	return core.NewColumn(name, core.KindString, values)
}

func detectKind(values []any) (core.Kind, bool) {
	var seen = map[core.Kind]bool{}
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			seen[core.KindInt] = true
		case float64:
			if !core.IsNull(v) {
				seen[core.KindFloat] = true
			}
		case bool:
			seen[core.KindBool] = true
		case time.Time:
			seen[core.KindTime] = true
		default:
			seen[core.KindString] = true
		}
	}
	switch {
	case len(seen) == 0:
		return core.KindString, false
	case len(seen) == 1:
		for k := range seen {
			return k, false
		}
	case len(seen) == 2 && seen[core.KindInt] && seen[core.KindFloat]:
		return core.KindFloat, false
	}
	return core.KindString, true
}

func normalizeDriverValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case int64, float64, bool, string, time.Time:
		return v
	default:
		return fmt.Sprint(v)
	}
}
