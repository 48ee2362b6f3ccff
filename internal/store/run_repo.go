package store

import (
	"context"
	"database/sql"
	"fmt"

	"recontext/internal/domain"
)

// RunRepo handles persistence for run records.
type RunRepo struct{}

// Create inserts a new run row.
func (r *RunRepo) Create(ctx context.Context, db *sql.DB, rec domain.RunRecord) error {
	const q = `INSERT INTO runs (run_id, status, current_scenario, target_scenario, section_count, started_at_unix, finished_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.RunID,
		string(rec.Status),
		rec.CurrentScenario,
		rec.TargetScenario,
		rec.SectionCount,
		rec.StartedAtUnix,
		rec.FinishedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Finish stamps a run with its terminal status.
func (r *RunRepo) Finish(ctx context.Context, db *sql.DB, runID string, status domain.RunStatus, finishedAtUnix int64) error {
	const q = `UPDATE runs SET status = ?, finished_at_unix = ? WHERE run_id = ?`

	res, err := db.ExecContext(ctx, q, string(status), finishedAtUnix, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (r *RunRepo) GetByID(ctx context.Context, db *sql.DB, runID string) (*domain.RunRecord, error) {
	const q = `SELECT run_id, status, current_scenario, target_scenario, section_count, started_at_unix, finished_at_unix
FROM runs WHERE run_id = ?`

	row := db.QueryRowContext(ctx, q, runID)

	var rec domain.RunRecord
	var status string
	err := row.Scan(&rec.RunID, &status, &rec.CurrentScenario, &rec.TargetScenario,
		&rec.SectionCount, &rec.StartedAtUnix, &rec.FinishedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	rec.Status = domain.RunStatus(status)
	return &rec, nil
}
