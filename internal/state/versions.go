package state

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/core"
)

const versionColumns = `id, dataset_id, version_number, file_path, format, description, transformations,
	is_active, created_at`

// CreateVersion stores v as the next, active version of its dataset. Other
// versions are deactivated and the dataset is repointed at v's file, all in
// one transaction.
func (s *sqlStore) CreateVersion(v *core.DatasetVersion) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.inTx(func(tx *sql.Tx) error {
		var exists int
		err := s.queryRow(tx, `SELECT COUNT(*) FROM datasets WHERE id = ?`, v.DatasetID).Scan(&exists)
		if err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to get dataset")
		}
		if exists == 0 {
			return core.Errorf(core.CategoryNotFound, "dataset %d not found", v.DatasetID)
		}

		var next int
		if err := s.queryRow(tx,
			`SELECT COALESCE(MAX(version_number), 0) + 1 FROM dataset_versions WHERE dataset_id = ?`,
			v.DatasetID,
		).Scan(&next); err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to number version")
		}
		if _, err := s.exec(tx, `UPDATE dataset_versions SET is_active = ? WHERE dataset_id = ?`, false, v.DatasetID); err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to deactivate versions")
		}

		v.VersionNumber = next
		v.IsActive = true
		v.CreatedAt = now()
		err = s.queryRow(tx,
			`INSERT INTO dataset_versions (dataset_id, version_number, file_path, format, description,
				transformations, is_active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			v.DatasetID, v.VersionNumber, v.FilePath, string(v.Format), v.Description,
			rawJSON(v.Transformations), true, v.CreatedAt,
		).Scan(&v.ID)
		if err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create version")
		}

		if err := s.pointDataset(tx, v); err != nil {
			return err
		}
		s.logger.Debug("version created",
			slog.Int64("dataset_id", v.DatasetID), slog.Int("version", v.VersionNumber))
		return nil
	})
}

// ListVersions returns the versions of a dataset, newest first.
func (s *sqlStore) ListVersions(datasetID int64) ([]*core.DatasetVersion, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.query(s.db,
		`SELECT `+versionColumns+` FROM dataset_versions WHERE dataset_id = ? ORDER BY version_number DESC`,
		datasetID)
	if err != nil {
		return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to list versions")
	}
	defer func() { _ = rows.Close() }()

	var out []*core.DatasetVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to scan version")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ActivateVersion makes a version the active one and repoints its dataset.
func (s *sqlStore) ActivateVersion(versionID int64) (*core.DatasetVersion, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var v *core.DatasetVersion
	err := s.inTx(func(tx *sql.Tx) error {
		var err error
		v, err = scanVersion(s.queryRow(tx, `SELECT `+versionColumns+` FROM dataset_versions WHERE id = ?`, versionID))
		if errors.Is(err, sql.ErrNoRows) {
			return core.Errorf(core.CategoryNotFound, "version %d not found", versionID)
		}
		if err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to get version")
		}
		if _, err := s.exec(tx,
			`UPDATE dataset_versions SET is_active = (id = ?) WHERE dataset_id = ?`,
			versionID, v.DatasetID,
		); err != nil {
			return core.Wrap(core.CategoryStorageUnavailable, err, "failed to activate version")
		}
		v.IsActive = true
		return s.pointDataset(tx, v)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *sqlStore) pointDataset(tx *sql.Tx, v *core.DatasetVersion) error {
	res, err := s.exec(tx,
		`UPDATE datasets SET file_path = ?, format = ?, updated_at = ? WHERE id = ?`,
		v.FilePath, string(v.Format), now(), v.DatasetID,
	)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to repoint dataset")
	}
	return expectRow(res, "dataset", v.DatasetID)
}

func scanVersion(row scanner) (*core.DatasetVersion, error) {
	var (
		v       core.DatasetVersion
		format  string
		tf      sql.NullString
		created dbTime
	)
	err := row.Scan(&v.ID, &v.DatasetID, &v.VersionNumber, &v.FilePath, &format, &v.Description, &tf,
		&v.IsActive, &created)
	if err != nil {
		return nil, err
	}
	v.Format = core.Format(format)
	v.Transformations = toRaw(tf)
	v.CreatedAt = created.Time
	return &v, nil
}
