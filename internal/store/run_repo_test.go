package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"recontext/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRepo_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &RunRepo{}
	now := time.Now().Unix()

	rec := domain.RunRecord{
		RunID:           "run-1",
		Status:          domain.RunRunning,
		CurrentScenario: "coffee shop",
		TargetScenario:  "pharmacy",
		SectionCount:    2,
		StartedAtUnix:   now,
	}
	if err := repo.Create(ctx, db, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.RunRunning {
		t.Errorf("Status = %s, want running", got.Status)
	}
	if got.CurrentScenario != "coffee shop" || got.TargetScenario != "pharmacy" {
		t.Errorf("scenarios = %q -> %q", got.CurrentScenario, got.TargetScenario)
	}
	if got.SectionCount != 2 {
		t.Errorf("SectionCount = %d, want 2", got.SectionCount)
	}
	if got.FinishedAtUnix != 0 {
		t.Errorf("FinishedAtUnix = %d, want 0 while running", got.FinishedAtUnix)
	}
}

func TestRunRepo_Finish(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &RunRepo{}
	now := time.Now().Unix()

	rec := domain.RunRecord{RunID: "run-2", Status: domain.RunRunning, StartedAtUnix: now}
	if err := repo.Create(ctx, db, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Finish(ctx, db, "run-2", domain.RunSucceeded, now+5); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "run-2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != domain.RunSucceeded {
		t.Errorf("Status = %s, want succeeded", got.Status)
	}
	if got.FinishedAtUnix != now+5 {
		t.Errorf("FinishedAtUnix = %d, want %d", got.FinishedAtUnix, now+5)
	}
}

func TestRunRepo_FinishMissingRun(t *testing.T) {
	db := newTestDB(t)

	err := (&RunRepo{}).Finish(context.Background(), db, "ghost", domain.RunFailed, 1)
	if err != domain.ErrRunNotFound {
		t.Fatalf("Finish missing run = %v, want ErrRunNotFound", err)
	}
}

func TestRunRepo_GetMissingRun(t *testing.T) {
	db := newTestDB(t)

	_, err := (&RunRepo{}).GetByID(context.Background(), db, "ghost")
	if err != domain.ErrRunNotFound {
		t.Fatalf("GetByID missing run = %v, want ErrRunNotFound", err)
	}
}
