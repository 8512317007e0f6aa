package state

import (
	"database/sql"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/leapstack-labs/leapml/pkg/core"
)

const dialectPostgres = "postgres"

// PostgresStore implements core.Store using PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore creates a new PostgreSQL state store instance.
func NewPostgresStore(logger *slog.Logger) *PostgresStore {
	return &PostgresStore{sqlStore: newSQLStore(dialectPostgres, logger)}
}

// Open connects to the database named by a libpq style DSN or URL.
func (s *PostgresStore) Open(dsn string) error {
	if dsn == "" {
		return core.Errorf(core.CategoryInvalidArgument, "postgres state backend requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to open postgres database")
	}
	if err := db.PingContext(ctx()); err != nil {
		_ = db.Close()
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to connect to postgres")
	}
	s.db = db
	s.logger.Debug("state store opened", slog.String("backend", "postgres"))
	return nil
}
