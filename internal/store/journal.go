package store

import (
	"context"
	"database/sql"

	"recontext/internal/domain"
)

// Journal is the SQLite-backed run journal. It satisfies the workflow
// journal interface; writes from concurrent sections serialize on the
// single SQLite connection.
type Journal struct {
	db       *sql.DB
	runs     RunRepo
	attempts AttemptRepo
	events   EventRepo
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreInit.Code, "open journal", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartRun inserts the run row.
func (j *Journal) StartRun(ctx context.Context, rec domain.RunRecord) error {
	return j.runs.Create(ctx, j.db, rec)
}

// RecordAttempt appends one attempt row.
func (j *Journal) RecordAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	return j.attempts.Record(ctx, j.db, rec)
}

// RecordEvent appends one event row.
func (j *Journal) RecordEvent(ctx context.Context, ev domain.RunEvent) error {
	return j.events.Append(ctx, j.db, ev)
}

// FinishRun stamps the run with its terminal status.
func (j *Journal) FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAtUnix int64) error {
	return j.runs.Finish(ctx, j.db, runID, status, finishedAtUnix)
}

// Run returns the run row for inspection.
func (j *Journal) Run(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return j.runs.GetByID(ctx, j.db, runID)
}

// Attempts returns every attempt of a run in insertion order.
func (j *Journal) Attempts(ctx context.Context, runID string) ([]domain.AttemptRecord, error) {
	return j.attempts.ListByRun(ctx, j.db, runID)
}

// Events returns every event of a run in insertion order.
func (j *Journal) Events(ctx context.Context, runID string) ([]domain.RunEvent, error) {
	return j.events.ListByRun(ctx, j.db, runID)
}
