package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a lookup matches no run row.
var ErrRunNotFound = errors.New("run not found")

// runColumns is the list of columns to select for run queries.
const runColumns = `id, guid, trace_id, exec_path, channel_path, window_handle,
	pid, transcript_path, status, started_at, ended_at`

// applyColumns is the list of columns to select for apply queries.
const applyColumns = `id, run_id, orbital_speed, altitude, delivered, error, applied_at`

// ApplyStats summarizes the delivery attempts recorded for one run.
type ApplyStats struct {
	Total     int64
	Delivered int64
	Failed    int64
}

// Repository provides access to run and apply rows.
type Repository struct {
	db *sql.DB
}

// newRepository creates a new Repository instance.
func newRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// scanRun scans a row into a runModel.
func scanRun(scanner interface{ Scan(...any) error }) (*runModel, error) {
	var model runModel
	err := scanner.Scan(
		&model.ID, &model.GUID, &model.TraceID, &model.ExecPath, &model.ChannelPath,
		&model.WindowHandle, &model.PID, &model.TranscriptPath, &model.Status,
		&model.StartedAt, &model.EndedAt,
	)
	return &model, err
}

// scanApply scans a row into an applyModel.
func scanApply(scanner interface{ Scan(...any) error }) (*applyModel, error) {
	var model applyModel
	err := scanner.Scan(
		&model.ID, &model.RunID, &model.OrbitalSpeed, &model.Altitude,
		&model.Delivered, &model.Error, &model.AppliedAt,
	)
	return &model, err
}

// CreateRun inserts a new run row and sets the run ID.
func (r *Repository) CreateRun(run *Run) error {
	model := toRunModel(run)
	result, err := r.db.Exec(
		`INSERT INTO runs (
			guid, trace_id, exec_path, channel_path, window_handle,
			pid, transcript_path, status, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		model.GUID, model.TraceID, model.ExecPath, model.ChannelPath, model.WindowHandle,
		model.PID, model.TranscriptPath, model.Status, model.StartedAt, model.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	run.ID = id
	return nil
}

// SetRunHandle records the window handle and process ID once the handshake
// has resolved.
func (r *Repository) SetRunHandle(id, handle int64, pid int) error {
	_, err := r.db.Exec(
		`UPDATE runs SET window_handle = ?, pid = ? WHERE id = ?`,
		handle, pid, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set run handle: %w", err)
	}
	return nil
}

// FinishRun marks a run as ended with the given terminal status.
func (r *Repository) FinishRun(id int64, status string, endedAt time.Time) error {
	_, err := r.db.Exec(
		`UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`,
		status, endedAt.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordApply inserts a delivery attempt row and sets the apply ID.
func (r *Repository) RecordApply(a *Apply) error {
	model := toApplyModel(a)
	result, err := r.db.Exec(
		`INSERT INTO applies (run_id, orbital_speed, altitude, delivered, error, applied_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		model.RunID, model.OrbitalSpeed, model.Altitude, model.Delivered, model.Error, model.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert apply: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

// GetRun retrieves a run by its database ID.
// Returns ErrRunNotFound if no matching run exists.
func (r *Repository) GetRun(id int64) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		id,
	)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return model.toRun(), nil
}

// FindRunByGUID retrieves a run by its GUID.
// Returns ErrRunNotFound if no matching run exists.
func (r *Repository) FindRunByGUID(guid string) (*Run, error) {
	row := r.db.QueryRow(
		`SELECT `+runColumns+` FROM runs WHERE guid = ?`,
		guid,
	)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guid %s", ErrRunNotFound, guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run by guid: %w", err)
	}
	return model.toRun(), nil
}

// LatestRun retrieves the most recently started run.
// Returns ErrRunNotFound when the table is empty.
func (r *Repository) LatestRun() (*Run, error) {
	row := r.db.QueryRow(
		`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`,
	)
	model, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs recorded", ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return model.toRun(), nil
}

// ListRuns retrieves runs ordered by start time descending (newest first).
// A limit of 0 or less returns all runs.
func (r *Repository) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		model, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, model.toRun())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// ListApplies retrieves the delivery attempts for a run in the order they
// were recorded.
func (r *Repository) ListApplies(runID int64) ([]*Apply, error) {
	rows, err := r.db.Query(
		`SELECT `+applyColumns+` FROM applies WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list applies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var applies []*Apply
	for rows.Next() {
		model, err := scanApply(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan apply row: %w", err)
		}
		applies = append(applies, model.toApply())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apply rows: %w", err)
	}
	return applies, nil
}

// ApplyStats summarizes delivery attempts for a run.
func (r *Repository) ApplyStats(runID int64) (ApplyStats, error) {
	var stats ApplyStats
	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(delivered), 0) FROM applies WHERE run_id = ?`,
		runID,
	).Scan(&stats.Total, &stats.Delivered)
	if err != nil {
		return ApplyStats{}, fmt.Errorf("failed to compute apply stats: %w", err)
	}
	stats.Failed = stats.Total - stats.Delivered
	return stats, nil
}
