package state

import (
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/leapstack-labs/leapml/pkg/core"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// gooseMu guards goose's package level configuration.
var gooseMu sync.Mutex

// Migrate runs all pending database migrations.
func (s *sqlStore) Migrate() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return err
	}
	if err := goose.Up(s.db, "migrations/"+s.dialect); err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to run migrations")
	}
	return nil
}

// MigrationVersion returns the current migration version.
func (s *sqlStore) MigrationVersion() (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := s.configureGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(s.db)
}

func (s *sqlStore) configureGoose() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}
