package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/prematch/internal/models"
	"github.com/desertthunder/prematch/internal/shared"
)

// RunRepository implements models.Repository[*models.MatchRun] for match run history.
//
// Handles run CRUD operations with soft delete support and driver/status based queries.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, sequence, driver, mode, policy, group_id, status, total, checked,
	changed, missed, failed, error_message, started_at, completed_at,
	created_at, updated_at, deleted_at
`

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.MatchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "match_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `
		INSERT INTO match_runs (
			id, sequence, driver, mode, policy, group_id, status, total, checked,
			changed, missed, failed, error_message, started_at, completed_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	counts := run.Counts()
	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.Driver(),
		run.Mode(),
		run.Policy(),
		run.GroupID(),
		string(run.Status()),
		counts.Total,
		counts.Checked,
		counts.Changed,
		counts.Missed,
		counts.Failed,
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.MatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM match_runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Update writes the status, counts and timestamps of an existing run
func (r *RunRepository) Update(run *models.MatchRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE match_runs
		SET status = ?, total = ?, checked = ?, changed = ?, missed = ?, failed = ?,
			error_message = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	counts := run.Counts()
	result, err := r.db.Exec(query,
		string(run.Status()),
		counts.Total,
		counts.Checked,
		counts.Changed,
		counts.Missed,
		counts.Failed,
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update match run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("match run %s %w", run.ID(), shared.ErrNotFound)
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE match_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete match run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("match run %s %w", id, shared.ErrNotFound)
	}

	return nil
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "driver" (string), "status" (string), "group_id" (int64), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.MatchRun, error) {
	query := `SELECT ` + runColumns + ` FROM match_runs WHERE deleted_at IS NULL`
	args := []any{}

	if driver, ok := criteria["driver"].(string); ok && driver != "" {
		query += " AND driver = ?"
		args = append(args, driver)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if groupID, ok := criteria["group_id"].(int64); ok && groupID > 0 {
		query += " AND group_id = ?"
		args = append(args, groupID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.MatchRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// scan reads one match_runs row from a [sql.Row] or [sql.Rows] into a [models.MatchRun]
func (r *RunRepository) scan(row rowScanner) (*models.MatchRun, error) {
	var (
		id           string
		sequence     int
		driver       string
		mode         string
		policy       string
		groupID      int64
		status       string
		counts       models.RunCounts
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &driver, &mode, &policy, &groupID, &status,
		&counts.Total, &counts.Checked, &counts.Changed, &counts.Missed, &counts.Failed,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match run %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match run: %w", err)
	}

	run := models.NewMatchRun(driver, mode, policy, groupID)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetCounts(counts)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.SetStartedAt(nil)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
