package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leapml/pkg/core"
)

const experimentColumns = `id, name, description, dataset_id, algorithm, hyperparameters, target_column,
	feature_columns, train_ratio, random_seed, status, metrics, confusion_matrix, roc_data, residuals,
	predictions, training_time, model_path, transformations_path, error_message, created_at, completed_at`

// CreateExperiment inserts exp as pending and sets its ID.
func (s *sqlStore) CreateExperiment(exp *core.Experiment) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	params := exp.Hyperparameters
	if params == nil {
		params = map[string]any{}
	}
	hp, err := encodeJSON(params)
	if err != nil {
		return core.Wrap(core.CategoryInvalidArgument, err, "failed to encode hyperparameters")
	}
	features, err := encodeJSON(nonNilStrings(exp.FeatureColumns))
	if err != nil {
		return err
	}
	exp.Status = core.ExperimentPending
	exp.CreatedAt = now()

	s.logger.Debug("creating experiment", slog.String("name", exp.Name), slog.String("algorithm", exp.Algorithm))
	err = s.queryRow(s.db,
		`INSERT INTO experiments (name, description, dataset_id, algorithm, hyperparameters, target_column,
			feature_columns, train_ratio, random_seed, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		exp.Name, exp.Description, exp.DatasetID, exp.Algorithm, hp, exp.TargetColumn,
		features, exp.TrainRatio, exp.RandomSeed, string(exp.Status), exp.CreatedAt,
	).Scan(&exp.ID)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to create experiment")
	}
	return nil
}

// GetExperiment retrieves an experiment with its results.
func (s *sqlStore) GetExperiment(id int64) (*core.Experiment, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	exp, err := scanExperiment(s.queryRow(s.db, `SELECT `+experimentColumns+` FROM experiments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.CategoryNotFound, "experiment %d not found", id)
	}
	if err != nil {
		return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to get experiment")
	}
	return exp, nil
}

// ListExperiments returns the experiments of a dataset, newest first.
// A zero datasetID lists every experiment.
func (s *sqlStore) ListExperiments(datasetID int64) ([]*core.Experiment, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	query := `SELECT ` + experimentColumns + ` FROM experiments`
	var args []any
	if datasetID != 0 {
		query += ` WHERE dataset_id = ?`
		args = append(args, datasetID)
	}
	rows, err := s.query(s.db, query+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to list experiments")
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, core.Wrap(core.CategoryStorageUnavailable, err, "failed to scan experiment")
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

// StartExperiment moves a pending experiment to training. The update only
// matches a pending row, so of several processes sharing the database
// exactly one wins; the others get the error for the status they found.
func (s *sqlStore) StartExperiment(id int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.exec(s.db, `UPDATE experiments SET status = ? WHERE id = ? AND status = ?`,
		string(core.ExperimentTraining), id, string(core.ExperimentPending))
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to update experiment status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	exp, err := s.GetExperiment(id)
	if err != nil {
		return err
	}
	if err := exp.Status.CheckStart(id); err != nil {
		return err
	}
	return core.Errorf(core.CategoryStorageUnavailable, "experiment %d was not updated", id)
}

// CompleteExperiment stores the results and marks the experiment completed.
func (s *sqlStore) CompleteExperiment(id int64, result *core.ExperimentResult) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("experiment %d completed without a result", id)
	}
	res, err := s.exec(s.db,
		`UPDATE experiments SET status = ?, metrics = ?, confusion_matrix = ?, roc_data = ?, residuals = ?,
			predictions = ?, training_time = ?, model_path = ?, transformations_path = ?, error_message = NULL,
			completed_at = ?
		 WHERE id = ?`,
		string(core.ExperimentCompleted), rawJSON(result.Metrics), rawJSON(result.ConfusionMatrix),
		rawJSON(result.ROCData), rawJSON(result.Residuals), rawJSON(result.Predictions), result.TrainingTime,
		nullString(result.ModelPath), nullString(result.TransformationsPath), now(), id,
	)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to complete experiment")
	}
	return expectRow(res, "experiment", id)
}

// FailExperiment marks the experiment failed with errMsg.
func (s *sqlStore) FailExperiment(id int64, errMsg string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.exec(s.db,
		`UPDATE experiments SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(core.ExperimentFailed), errMsg, now(), id,
	)
	if err != nil {
		return core.Wrap(core.CategoryStorageUnavailable, err, "failed to mark experiment failed")
	}
	return expectRow(res, "experiment", id)
}

func scanExperiment(row scanner) (*core.Experiment, error) {
	var (
		exp                                core.Experiment
		hp, features, status               string
		metrics, cm, roc, residuals, preds sql.NullString
		modelPath, bundlePath, errMsg      sql.NullString
		trainingTime                       sql.NullFloat64
		created, completed                 dbTime
	)
	err := row.Scan(&exp.ID, &exp.Name, &exp.Description, &exp.DatasetID, &exp.Algorithm, &hp,
		&exp.TargetColumn, &features, &exp.TrainRatio, &exp.RandomSeed, &status, &metrics, &cm, &roc,
		&residuals, &preds, &trainingTime, &modelPath, &bundlePath, &errMsg, &created, &completed)
	if err != nil {
		return nil, err
	}
	exp.Status = core.ExperimentStatus(status)
	if err := json.Unmarshal([]byte(hp), &exp.Hyperparameters); err != nil {
		return nil, fmt.Errorf("failed to decode hyperparameters: %w", err)
	}
	if err := decodeStrings(features, &exp.FeatureColumns); err != nil {
		return nil, err
	}
	exp.ErrorMessage = errMsg.String
	exp.CreatedAt = created.Time
	exp.CompletedAt = completed.ptr()

	if exp.Status == core.ExperimentCompleted {
		exp.Result = &core.ExperimentResult{
			Metrics:             toRaw(metrics),
			ConfusionMatrix:     toRaw(cm),
			ROCData:             toRaw(roc),
			Residuals:           toRaw(residuals),
			Predictions:         toRaw(preds),
			TrainingTime:        trainingTime.Float64,
			ModelPath:           modelPath.String,
			TransformationsPath: bundlePath.String,
		}
	}
	return &exp, nil
}
