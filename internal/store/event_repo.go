package store

import (
	"context"
	"database/sql"
	"fmt"

	"recontext/internal/domain"
)

// EventRepo handles persistence for run event records.
type EventRepo struct{}

// Append inserts a run event.
func (r *EventRepo) Append(ctx context.Context, db *sql.DB, event domain.RunEvent) error {
	const q = `INSERT INTO run_events (run_id, section, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		event.RunID,
		event.Section,
		event.EventType,
		event.PayloadJSON,
		event.CreatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByRun returns events for a run in insertion order.
func (r *EventRepo) ListByRun(ctx context.Context, db *sql.DB, runID string) ([]domain.RunEvent, error) {
	const q = `SELECT id, run_id, section, event_type, payload_json, created_at
FROM run_events
WHERE run_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		var e domain.RunEvent
		if err := rows.Scan(&e.ID, &e.RunID, &e.Section, &e.EventType, &e.PayloadJSON, &e.CreatedAtUnix); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
