package state

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/core"
)

const datasetColumns = `id, name, filename, file_path, format, file_size, rows_count, columns_count,
	columns, columns_info, status, created_at, updated_at`

// CreateDataset inserts ds and sets its ID and timestamps.
func (s *sqlStore) CreateDataset(ds *core.Dataset) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	columns, err := encodeJSON(nonNilStrings(ds.Columns))
	if err != nil {
		return err
	}
	if ds.Status == "" {
		ds.Status = "ready"
	}
	ds.CreatedAt = now()
	ds.UpdatedAt = ds.CreatedAt

	s.logger.Debug("creating dataset", slog.String("name", ds.Name), slog.String("path", ds.FilePath))
	err = s.queryRow(s.db,
		`INSERT INTO datasets (name, filename, file_path, format, file_size, rows_count, columns_count,
			columns, columns_info, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		ds.Name, ds.Filename, ds.FilePath, string(ds.Format), ds.FileSize, ds.RowsCount, ds.ColumnsCount,
		columns, rawJSON(ds.ColumnsInfo), ds.Status, ds.CreatedAt, ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create dataset")
	}
	return nil
}

// GetDataset retrieves a dataset by ID.
func (s *sqlStore) GetDataset(id int64) (*core.Dataset, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	ds, err := scanDataset(s.queryRow(s.db, `SELECT `+datasetColumns+` FROM datasets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.CategoryNotFound, "dataset %d not found", id)
	}
	if err != nil {
		return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to get dataset")
	}
	return ds, nil
}

// ListDatasets returns all datasets in creation order.
func (s *sqlStore) ListDatasets() ([]*core.Dataset, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.query(s.db, `SELECT `+datasetColumns+` FROM datasets ORDER BY id`)
	if err != nil {
		return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to list datasets")
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to scan dataset")
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// UpdateDataset stores the file and shape fields of ds.
func (s *sqlStore) UpdateDataset(ds *core.Dataset) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	columns, err := encodeJSON(nonNilStrings(ds.Columns))
	if err != nil {
		return err
	}
	ds.UpdatedAt = now()
	res, err := s.exec(s.db,
		`UPDATE datasets SET file_path = ?, format = ?, file_size = ?, rows_count = ?, columns_count = ?,
			columns = ?, columns_info = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		ds.FilePath, string(ds.Format), ds.FileSize, ds.RowsCount, ds.ColumnsCount,
		columns, rawJSON(ds.ColumnsInfo), ds.Status, ds.UpdatedAt, ds.ID,
	)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to update dataset")
	}
	return expectRow(res, "dataset", ds.ID)
}

func scanDataset(row scanner) (*core.Dataset, error) {
	var (
		ds               core.Dataset
		format, columns  string
		info             sql.NullString
		created, updated dbTime
	)
	err := row.Scan(&ds.ID, &ds.Name, &ds.Filename, &ds.FilePath, &format, &ds.FileSize, &ds.RowsCount,
		&ds.ColumnsCount, &columns, &info, &ds.Status, &created, &updated)
	if err != nil {
		return nil, err
	}
	ds.Format = core.Format(format)
	if err := decodeStrings(columns, &ds.Columns); err != nil {
		return nil, err
	}
	ds.ColumnsInfo = toRaw(info)
	ds.CreatedAt, ds.UpdatedAt = created.Time, updated.Time
	return &ds, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
