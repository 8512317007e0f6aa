package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/leapml/pkg/core"
)

const dialectSQLite = "sqlite"

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	return &SQLiteStore{sqlStore: newSQLStore(dialectSQLite, logger)}
}

// Open opens a connection to the SQLite database, creating its directory.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)&_time_format=sqlite"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create state directory")
		}
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to open sqlite database")
	}
	// One connection: an in-memory database lives on a single connection and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx()); err != nil {
		_ = db.Close()
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to ping sqlite database")
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", slog.String("backend", "sqlite"), slog.String("path", path))
	return nil
}

// Path returns the database path given to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}
