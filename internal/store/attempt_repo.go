package store

import (
	"context"
	"database/sql"
	"fmt"

	"recontext/internal/domain"
)

// AttemptRepo handles persistence for generation attempt records.
type AttemptRepo struct{}

// Record inserts one attempt row.
func (r *AttemptRepo) Record(ctx context.Context, db *sql.DB, rec domain.AttemptRecord) error {
	const q = `INSERT INTO attempts (run_id, section, attempt_index, outcome, errors_json, output_bytes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.RunID,
		rec.Section,
		rec.AttemptIndex,
		string(rec.Outcome),
		rec.ErrorsJSON,
		rec.OutputBytes,
		rec.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ListByRun returns every attempt of a run in insertion order.
func (r *AttemptRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.AttemptRecord, error) {
	const q = `SELECT id, run_id, section, attempt_index, outcome, errors_json, output_bytes, created_at
FROM attempts
WHERE run_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.AttemptRecord
	for rows.Next() {
		var rec domain.AttemptRecord
		var outcome string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Section, &rec.AttemptIndex,
			&outcome, &rec.ErrorsJSON, &rec.OutputBytes, &rec.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Outcome = domain.AttemptOutcome(outcome)
		attempts = append(attempts, rec)
	}
	return attempts, rows.Err()
}
