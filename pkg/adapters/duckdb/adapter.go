// Package duckdb provides a DuckDB-backed dataset adapter for LeapML.
//
// CSV and JSON files are decoded with read_csv_auto / read_json_auto and
// written with COPY. ARFF has no DuckDB reader and is delegated to the
// native adapter's parser.
//
// Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/leapml/pkg/adapters/duckdb"
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapml/pkg/adapter"
	"github.com/leapstack-labs/leapml/pkg/adapters/native"
	"github.com/leapstack-labs/leapml/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Adapter implements core.Adapter on an embedded DuckDB engine.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new DuckDB adapter instance. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		params:         &Params{SampleSize: -1},
	}
}

// Connect opens the engine.
// Use ":memory:" (or an empty path) for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg core.AdapterConfig) error {
	params, err := parseParams(cfg.Options)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.params = params

	for _, stmt := range params.settingsSQL() {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("failed to apply setting: %w", err)
		}
	}

	a.Logger.Debug("duckdb connected", "path", path)
	return nil
}

// Read decodes the file at path into a table.
func (a *Adapter) Read(ctx context.Context, path string, format core.Format) (*core.Table, error) {
	resolved, actual, err := adapter.ResolveSource(path, format)
	if err != nil {
		return nil, err
	}
	if resolved != path {
		a.Logger.Info("ARFF not found, using CSV", "path", resolved)
	}

	absPath, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var query string
	switch actual {
	case core.FormatCSV:
		query = fmt.Sprintf(
			"SELECT * FROM read_csv_auto(%s, header=true, sample_size=%d, nullstr=%s)",
			quoteLiteral(absPath), a.params.SampleSize, quoteList(adapter.DefaultNullTokens),
		)
	case core.FormatJSON:
		query = fmt.Sprintf("SELECT * FROM read_json_auto(%s)", quoteLiteral(absPath))
	case core.FormatARFF:
		return readARFF(absPath)
	default:
		return nil, core.Errorf(core.CategoryInvalidArgument, "unsupported file format: %s", actual)
	}

	t, err := a.QueryTable(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(resolved), err)
	}
	return t, nil
}

func readARFF(path string) (*core.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return native.ReadARFF(f)
}

// Write stages the table in a temporary DuckDB table and exports it
// with COPY.
func (a *Adapter) Write(ctx context.Context, t *core.Table, path string, format core.Format) error {
	var copyOpts string
	switch format {
	case core.FormatCSV:
		copyOpts = "FORMAT CSV, HEADER"
	case core.FormatJSON:
		copyOpts = "FORMAT JSON, ARRAY true"
	case core.FormatARFF:
		return core.Errorf(core.CategoryInvalidArgument, "arff output is not supported")
	default:
		return core.Errorf(core.CategoryInvalidArgument, "unsupported file format: %s", format)
	}
	if a.DB == nil {
		return fmt.Errorf("database connection not established")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	staging := "leapml_export_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := a.stage(ctx, staging, t); err != nil {
		return err
	}
	defer func() {
		_ = a.Exec(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+quoteIdent(staging))
	}()

	copySQL := fmt.Sprintf("COPY %s TO %s (%s)", quoteIdent(staging), quoteLiteral(absPath), copyOpts)
	if err := a.Exec(ctx, copySQL); err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to export %s", filepath.Base(path))
	}
	return nil
}

// stage creates a table shaped like t and inserts every row in one
// transaction.
func (a *Adapter) stage(ctx context.Context, name string, t *core.Table) error {
	cols := t.Columns()
	defs := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		defs[i] = quoteIdent(col.Name) + " " + sqlType(col.Kind)
		marks[i] = "?"
	}

	if err := a.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))); err != nil {
		return err
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(cols))
	for r := 0; r < t.NumRows(); r++ {
		for i, col := range cols {
			args[i] = cellArg(col, r)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r, err)
		}
	}
	return tx.Commit()
}

func sqlType(k core.Kind) string {
	switch k {
	case core.KindInt:
		return "BIGINT"
	case core.KindFloat:
		return "DOUBLE"
	case core.KindBool:
		return "BOOLEAN"
	case core.KindTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func cellArg(col *core.Column, r int) any {
	v := col.Values[r]
	if core.IsNull(v) {
		return nil
	}
	switch col.Kind {
	case core.KindFloat:
		if f, ok := core.ToFloat(v); ok {
			return f
		}
		return nil
	case core.KindString:
		if _, ok := v.(string); !ok {
			return core.FormatValue(v)
		}
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quoteLiteral(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

var _ core.Adapter = (*Adapter)(nil)
