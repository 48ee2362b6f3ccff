package workflow

import (
	"context"

	"recontext/internal/domain"
)

// Journal records run progress for post-mortem inspection. Journaling is
// best-effort: the runner and machines log write failures and keep going.
// Implementations must tolerate concurrent sections.
type Journal interface {
	StartRun(ctx context.Context, rec domain.RunRecord) error
	RecordAttempt(ctx context.Context, rec domain.AttemptRecord) error
	RecordEvent(ctx context.Context, ev domain.RunEvent) error
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, finishedAtUnix int64) error
}
