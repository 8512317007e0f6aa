package state

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapml/pkg/core"
)

func mockStore(t *testing.T, dialect string) (*sqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := newSQLStore(dialect, nil)
	s.db = db
	return &s, mock
}

func TestSQLStore_Failures(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		setup   func(mock sqlmock.Sqlmock)
		call    func(s *sqlStore) error
		wantErr error
	}{
		{
			name:    "get dataset query error",
			dialect: dialectSQLite,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT .* FROM datasets WHERE id = ?").WillReturnError(assert.AnError)
			},
			call: func(s *sqlStore) error {
				_, err := s.GetDataset(1)
				return err
			},
			wantErr: core.ErrStorageUnavailable,
		},
		{
			name:    "start on a missing row",
			dialect: dialectPostgres,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE experiments SET status = $1 WHERE id = $2 AND status = $3")).
					WithArgs("training", int64(7), "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(regexp.QuoteMeta("FROM experiments WHERE id = $1")).
					WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			call: func(s *sqlStore) error {
				return s.StartExperiment(7)
			},
			wantErr: core.ErrNotFound,
		},
		{
			name:    "start update error",
			dialect: dialectSQLite,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE experiments SET status = ? WHERE id = ? AND status = ?")).
					WillReturnError(assert.AnError)
			},
			call: func(s *sqlStore) error {
				return s.StartExperiment(7)
			},
			wantErr: core.ErrStorageUnavailable,
		},
		{
			name:    "version insert rolls back",
			dialect: dialectSQLite,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
				mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
				mock.ExpectExec("UPDATE dataset_versions SET is_active").WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectQuery("INSERT INTO dataset_versions").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			call: func(s *sqlStore) error {
				return s.CreateVersion(&core.DatasetVersion{DatasetID: 1, FilePath: "f.csv", Format: core.FormatCSV})
			},
			wantErr: core.ErrStorageUnavailable,
		},
		{
			name:    "commit failure",
			dialect: dialectSQLite,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery("SELECT .* FROM dataset_versions WHERE id = ?").
					WillReturnRows(sqlmock.NewRows([]string{
						"id", "dataset_id", "version_number", "file_path", "format", "description",
						"transformations", "is_active", "created_at",
					}).AddRow(5, 1, 2, "f.csv", "csv", "", nil, false, "2024-01-02 03:04:05+00:00"))
				mock.ExpectExec("UPDATE dataset_versions SET is_active").WillReturnResult(sqlmock.NewResult(0, 2))
				mock.ExpectExec("UPDATE datasets SET file_path").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(assert.AnError)
			},
			call: func(s *sqlStore) error {
				_, err := s.ActivateVersion(5)
				return err
			},
			wantErr: core.ErrStorageUnavailable,
		},
		{
			name:    "complete without result",
			dialect: dialectSQLite,
			setup:   func(sqlmock.Sqlmock) {},
			call: func(s *sqlStore) error {
				return s.CompleteExperiment(1, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := mockStore(t, tt.dialect)
			tt.setup(mock)

			err := tt.call(s)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), err.Error())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := newSQLStore(dialectPostgres, nil)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := newSQLStore(dialectSQLite, nil)
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestDBTime_Scan(t *testing.T) {
	for _, src := range []any{"2024-01-02 03:04:05+00:00", []byte("2024-01-02T03:04:05Z"), "2024-01-02 03:04:05"} {
		var d dbTime
		require.NoError(t, d.Scan(src))
		assert.True(t, d.Valid)
		assert.Equal(t, 2024, d.Time.Year())
	}
	var d dbTime
	require.NoError(t, d.Scan(nil))
	assert.Nil(t, d.ptr())
	assert.Error(t, d.Scan("yesterday"))
}
