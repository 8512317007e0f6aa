// Package state persists dataset, version and experiment metadata.
//
// Two backends share one implementation: SQLite (modernc, the default for
// the CLI and single-user servers) and PostgreSQL through pgx. Schemas are
// applied with goose migrations embedded in the binary.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapml/pkg/core"
)

// Backend names a metadata store implementation.
type Backend string

// Supported backends.
const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Open creates the store for backend, connects it to dsn and applies any
// pending migrations.
func Open(backend Backend, dsn string, logger *slog.Logger) (core.Store, error) {
	var store core.Store
	switch backend {
	case BackendSQLite, "":
		store = NewSQLiteStore(logger)
	case BackendPostgres:
		store = NewPostgresStore(logger)
	default:
		return nil, core.Errorf(core.CategoryInvalidArgument, "unknown state backend %q (want sqlite or postgres)", backend)
	}
	if err := store.Open(dsn); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// sqlStore implements the core.Store operations over database/sql.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db      *sql.DB
	dialect string
	logger  *slog.Logger
}

func newSQLStore(dialect string, logger *slog.Logger) sqlStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return sqlStore{dialect: dialect, logger: logger}
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema applies pending migrations.
func (s *sqlStore) InitSchema() error {
	return s.Migrate()
}

func (s *sqlStore) checkOpen() error {
	if s.db == nil {
		return core.Errorf(core.CategoryStorageUnavailable, "database not opened")
	}
	return nil
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *sqlStore) exec(q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx(), s.rebind(query), args...)
}

func (s *sqlStore) query(q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx(), s.rebind(query), args...)
}

func (s *sqlStore) queryRow(q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx(), s.rebind(query), args...)
}

// inTx runs fn in a transaction, rolling back when it fails.
func (s *sqlStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to commit transaction")
	}
	return nil
}

// expectRow maps a zero-row update to NotFound.
func expectRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return core.Errorf(core.CategoryNotFound, "%s %d not found", what, id)
	}
	return nil
}

func ctx() context.Context {
	return context.Background()
}

func now() time.Time {
	return time.Now().UTC()
}
