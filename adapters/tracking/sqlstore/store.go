package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type experimentRow struct {
	ExperimentID     int64  `db:"experiment_id"`
	Name             string `db:"name"`
	ArtifactLocation string `db:"artifact_location"`
	LifecycleStage   string `db:"lifecycle_stage"`
	CreationTime     int64  `db:"creation_time"`
	LastUpdateTime   int64  `db:"last_update_time"`
}

type runRow struct {
	RunUUID        string        `db:"run_uuid"`
	ExperimentID   int64         `db:"experiment_id"`
	Name           string        `db:"name"`
	Status         string        `db:"status"`
	StartTime      int64         `db:"start_time"`
	EndTime        sql.NullInt64 `db:"end_time"`
	ArtifactURI    string        `db:"artifact_uri"`
	LifecycleStage string        `db:"lifecycle_stage"`
}

type keyValueRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

type metricRow struct {
	Key       string  `db:"key"`
	Value     float64 `db:"value"`
	Timestamp int64   `db:"timestamp"`
	Step      int64   `db:"step"`
}

// Store keeps tracking metadata in a SQL database and hands out artifact
// locations under a local artifact root.
type Store struct {
	db           *sqlx.DB
	artifactRoot string
	logger       *internal.Logger
}

// Open connects, applies pending migrations and returns a store
func Open(ctx context.Context, driver, dsn, artifactRoot string, logger *internal.Logger) (*Store, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to connect to %s store", driver), err)
	}
	if driver == DriverSQLite {
		// one writer at a time keeps SQLite from reporting SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db, artifactRoot, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and applies pending migrations
func New(ctx context.Context, db *sqlx.DB, artifactRoot string, logger *internal.Logger) (*Store, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	abs, err := filepath.Abs(artifactRoot)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("invalid artifact root %s", artifactRoot), err)
	}

	runner := migration.NewRunner(migrationFiles, "migrations")
	if err := runner.Run(ctx, db); err != nil {
		return nil, errors.TrackingStoreError("failed to migrate tracking schema", err)
	}
	logger.Debug("[SQLStore] schema at version %s (%s)", runner.Version(), db.DriverName())

	return &Store{db: db, artifactRoot: abs, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaStatus lists the embedded migrations and whether each is applied
func (s *Store) SchemaStatus(ctx context.Context) ([]migration.MigrationStatus, error) {
	statuses, err := migration.NewRunner(migrationFiles, "migrations").Status(ctx, s.db)
	if err != nil {
		return nil, errors.TrackingStoreError("failed to read schema status", err)
	}
	return statuses, nil
}

// ---- experiments ----

func (s *Store) CreateExperiment(ctx context.Context, name string) (*run.Experiment, error) {
	if name == "" {
		return nil, errors.TrackingStoreError("experiment name cannot be empty", nil)
	}
	if existing, err := s.GetExperimentByName(ctx, name); err == nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("experiment %q already exists with id %s", name, existing.ID), nil)
	} else if !core.IsNotFoundError(err) {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.TrackingStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.GetContext(ctx, &next, "SELECT COALESCE(MAX(experiment_id), 0) + 1 FROM experiments"); err != nil {
		return nil, errors.TrackingStoreError("failed to allocate experiment id", err)
	}

	now := core.Now().UnixMilli()
	row := experimentRow{
		ExperimentID:     next,
		Name:             name,
		ArtifactLocation: fileURI(filepath.Join(s.artifactRoot, strconv.FormatInt(next, 10))),
		LifecycleStage:   run.LifecycleActive,
		CreationTime:     now,
		LastUpdateTime:   now,
	}
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO experiments (experiment_id, name, artifact_location, lifecycle_stage, creation_time, last_update_time)
		VALUES (:experiment_id, :name, :artifact_location, :lifecycle_stage, :creation_time, :last_update_time)
	`, row); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to insert experiment %q", name), err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.TrackingStoreError("failed to commit experiment", err)
	}

	s.logger.Debug("[SQLStore] created experiment %s (%d)", name, next)
	return row.toExperiment(), nil
}

func (s *Store) GetExperiment(ctx context.Context, id core.ExperimentID) (*run.Experiment, error) {
	n, err := strconv.ParseInt(id.String(), 10, 64)
	if err != nil {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment %q", id), core.ErrExperimentNotFound)
	}
	var row experimentRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT experiment_id, name, artifact_location, lifecycle_stage, creation_time, last_update_time
		FROM experiments WHERE experiment_id = ?`), n)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment %s", id), core.ErrExperimentNotFound)
	}
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read experiment %s", id), err)
	}
	return row.toExperiment(), nil
}

func (s *Store) GetExperimentByName(ctx context.Context, name string) (*run.Experiment, error) {
	var row experimentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT experiment_id, name, artifact_location, lifecycle_stage, creation_time, last_update_time
		FROM experiments WHERE name = ? AND lifecycle_stage = ?`), name, run.LifecycleActive)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment named %q", name), core.ErrExperimentNotFound)
	}
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to look up experiment %q", name), err)
	}
	return row.toExperiment(), nil
}

func (s *Store) ListExperiments(ctx context.Context) ([]run.Experiment, error) {
	var rows []experimentRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT experiment_id, name, artifact_location, lifecycle_stage, creation_time, last_update_time
		FROM experiments WHERE lifecycle_stage = ? ORDER BY experiment_id`), run.LifecycleActive); err != nil {
		return nil, errors.TrackingStoreError("failed to list experiments", err)
	}
	experiments := make([]run.Experiment, len(rows))
	for i, row := range rows {
		experiments[i] = *row.toExperiment()
	}
	return experiments, nil
}

// ---- runs ----

func (s *Store) CreateRun(ctx context.Context, experimentID core.ExperimentID, runName string, start core.Timestamp) (*run.RunInfo, error) {
	exp, err := s.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.LifecycleStage != run.LifecycleActive {
		return nil, errors.TrackingStoreError(fmt.Sprintf("experiment %s is %s", exp.ID, exp.LifecycleStage), nil)
	}

	runID := core.NewRunID()
	row := runRow{
		RunUUID:        runID.String(),
		ExperimentID:   mustInt(exp.ID.String()),
		Name:           runName,
		Status:         string(run.StatusRunning),
		StartTime:      start.UnixMilli(),
		ArtifactURI:    fileURI(filepath.Join(s.artifactRoot, exp.ID.String(), runID.String(), "artifacts")),
		LifecycleStage: run.LifecycleActive,
	}
	if _, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (run_uuid, experiment_id, name, status, start_time, end_time, artifact_uri, lifecycle_stage)
		VALUES (:run_uuid, :experiment_id, :name, :status, :start_time, :end_time, :artifact_uri, :lifecycle_stage)
	`, row); err != nil {
		return nil, errors.TrackingStoreError("failed to insert run", err)
	}

	s.logger.Debug("[SQLStore] created run %s in experiment %s", runID, exp.ID)
	info := row.toRunInfo()
	return &info, nil
}

func (s *Store) GetRun(ctx context.Context, runID core.RunID) (*run.Run, error) {
	row, err := s.getRunRow(ctx, runID)
	if err != nil {
		return nil, err
	}
	data := run.NewRunData()

	var params []keyValueRow
	if err := s.db.SelectContext(ctx, &params, s.db.Rebind(
		"SELECT key, value FROM params WHERE run_uuid = ?"), runID.String()); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read params of run %s", runID), err)
	}
	for _, p := range params {
		data.Params[p.Key] = p.Value
	}

	var tags []keyValueRow
	if err := s.db.SelectContext(ctx, &tags, s.db.Rebind(
		"SELECT key, value FROM tags WHERE run_uuid = ?"), runID.String()); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read tags of run %s", runID), err)
	}
	for _, t := range tags {
		data.Tags[t.Key] = t.Value
	}

	metrics, err := s.metricRows(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	latest := make(map[string]metricRow)
	for _, m := range metrics {
		cur, ok := latest[m.Key]
		if !ok || m.Step > cur.Step || (m.Step == cur.Step && m.Timestamp >= cur.Timestamp) {
			latest[m.Key] = m
		}
	}
	for key, m := range latest {
		data.Metrics[key] = m.Value
	}

	return &run.Run{Info: row.toRunInfo(), Data: data}, nil
}

func (s *Store) ListRuns(ctx context.Context, experimentID core.ExperimentID) ([]run.RunInfo, error) {
	exp, err := s.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT run_uuid, experiment_id, name, status, start_time, end_time, artifact_uri, lifecycle_stage
		FROM runs WHERE experiment_id = ? AND lifecycle_stage = ?
		ORDER BY start_time DESC`), mustInt(exp.ID.String()), run.LifecycleActive); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to list runs of experiment %s", exp.ID), err)
	}
	infos := make([]run.RunInfo, len(rows))
	for i, row := range rows {
		infos[i] = row.toRunInfo()
	}
	return infos, nil
}

func (s *Store) EndRun(ctx context.Context, runID core.RunID, status run.Status, end core.Timestamp) error {
	if !status.IsTerminal() {
		return errors.TrackingStoreError(fmt.Sprintf("cannot end run with status %s", status), nil)
	}
	if _, err := s.activeRunRow(ctx, runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"UPDATE runs SET status = ?, end_time = ? WHERE run_uuid = ?"),
		string(status), end.UnixMilli(), runID.String())
	if err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to end run %s", runID), err)
	}
	return nil
}

// LogParams writes each param once. Re-logging a key with a different
// value is rejected.
func (s *Store) LogParams(ctx context.Context, runID core.RunID, params map[string]string) error {
	if _, err := s.activeRunRow(ctx, runID); err != nil {
		return err
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if err := run.ValidateKey(k); err != nil {
			return errors.TrackingStoreError("invalid param key", err)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.TrackingStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		var existing string
		err := tx.GetContext(ctx, &existing, tx.Rebind(
			"SELECT value FROM params WHERE run_uuid = ? AND key = ?"), runID.String(), key)
		switch {
		case err == nil:
			if existing != params[key] {
				return errors.TrackingStoreError(
					fmt.Sprintf("param %q already logged as %q, refusing %q", key, existing, params[key]), nil)
			}
			continue
		case !stderrors.Is(err, sql.ErrNoRows):
			return errors.TrackingStoreError(fmt.Sprintf("failed to read param %q", key), err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(
			"INSERT INTO params (key, value, run_uuid) VALUES (?, ?, ?)"), key, params[key], runID.String()); err != nil {
			return errors.TrackingStoreError(fmt.Sprintf("failed to insert param %q", key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.TrackingStoreError("failed to commit params", err)
	}
	return nil
}

func (s *Store) LogMetric(ctx context.Context, runID core.RunID, metric run.Metric) error {
	if _, err := s.activeRunRow(ctx, runID); err != nil {
		return err
	}
	if err := run.ValidateKey(metric.Key); err != nil {
		return errors.TrackingStoreError("invalid metric key", err)
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		"INSERT INTO metrics (key, value, timestamp, step, run_uuid) VALUES (?, ?, ?, ?, ?)"),
		metric.Key, metric.Value, metric.Timestamp.UnixMilli(), metric.Step, runID.String())
	if err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to insert metric %q", metric.Key), err)
	}
	return nil
}

func (s *Store) SetTag(ctx context.Context, runID core.RunID, key, value string) error {
	if _, err := s.activeRunRow(ctx, runID); err != nil {
		return err
	}
	if err := run.ValidateKey(key); err != nil {
		return errors.TrackingStoreError("invalid tag key", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.TrackingStoreError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(
		"DELETE FROM tags WHERE run_uuid = ? AND key = ?"), runID.String(), key); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to replace tag %q", key), err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO tags (key, value, run_uuid) VALUES (?, ?, ?)"), key, value, runID.String()); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to insert tag %q", key), err)
	}
	if err := tx.Commit(); err != nil {
		return errors.TrackingStoreError("failed to commit tag", err)
	}
	return nil
}

// GetMetricHistory returns every logged observation of a metric ordered by
// step and timestamp
func (s *Store) GetMetricHistory(ctx context.Context, runID core.RunID, key string) ([]run.Metric, error) {
	if _, err := s.getRunRow(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.metricRows(ctx, runID, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.NotFoundError(fmt.Sprintf("metric %q of run %s", key, runID), core.ErrNotFound)
	}
	history := make([]run.Metric, len(rows))
	for i, m := range rows {
		history[i] = run.Metric{Key: m.Key, Value: m.Value, Timestamp: core.FromUnixMilli(m.Timestamp), Step: m.Step}
	}
	return history, nil
}

func (s *Store) metricRows(ctx context.Context, runID core.RunID, key string) ([]metricRow, error) {
	query := "SELECT key, value, timestamp, step FROM metrics WHERE run_uuid = ?"
	args := []any{runID.String()}
	if key != "" {
		query += " AND key = ?"
		args = append(args, key)
	}
	query += " ORDER BY key, step, timestamp"

	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read metrics of run %s", runID), err)
	}
	return rows, nil
}

func (s *Store) getRunRow(ctx context.Context, runID core.RunID) (*runRow, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT run_uuid, experiment_id, name, status, start_time, end_time, artifact_uri, lifecycle_stage
		FROM runs WHERE run_uuid = ?`), runID.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError(fmt.Sprintf("run %s", runID), core.ErrRunNotFound)
	}
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read run %s", runID), err)
	}
	return &row, nil
}

func (s *Store) activeRunRow(ctx context.Context, runID core.RunID) (*runRow, error) {
	row, err := s.getRunRow(ctx, runID)
	if err != nil {
		return nil, err
	}
	if row.Status != string(run.StatusRunning) {
		return nil, errors.TrackingStoreError(fmt.Sprintf("run %s is %s", runID, row.Status), core.ErrRunNotActive)
	}
	return row, nil
}

func (r experimentRow) toExperiment() *run.Experiment {
	return &run.Experiment{
		ID:               core.ExperimentID(strconv.FormatInt(r.ExperimentID, 10)),
		Name:             r.Name,
		ArtifactLocation: r.ArtifactLocation,
		LifecycleStage:   r.LifecycleStage,
		CreatedAt:        core.FromUnixMilli(r.CreationTime),
	}
}

func (r runRow) toRunInfo() run.RunInfo {
	info := run.RunInfo{
		RunID:          core.RunID(r.RunUUID),
		ExperimentID:   core.ExperimentID(strconv.FormatInt(r.ExperimentID, 10)),
		RunName:        r.Name,
		Status:         run.Status(r.Status),
		StartTime:      core.FromUnixMilli(r.StartTime),
		ArtifactURI:    r.ArtifactURI,
		LifecycleStage: r.LifecycleStage,
	}
	if r.EndTime.Valid {
		info.EndTime = core.FromUnixMilli(r.EndTime.Int64)
	}
	return info
}

func mustInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}
