package store

import (
	"context"
	"testing"
	"time"

	"recontext/internal/domain"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := &EventRepo{}
	now := time.Now().Unix()

	events := []domain.RunEvent{
		{RunID: "run-1", Section: "core", EventType: "state_transition", PayloadJSON: `{"from":"pending","to":"generating"}`, CreatedAtUnix: now},
		{RunID: "run-1", Section: "core", EventType: "state_transition", PayloadJSON: `{"from":"generating","to":"parsing"}`, CreatedAtUnix: now + 1},
		{RunID: "run-1", Section: "flow", EventType: "state_transition", PayloadJSON: `{"from":"pending","to":"generating"}`, CreatedAtUnix: now + 1},
	}
	for i, e := range events {
		if err := repo.Append(ctx, db, e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := repo.ListByRun(ctx, db, "run-1")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].Section != "core" || got[2].Section != "flow" {
		t.Errorf("event order off: %s, %s, %s", got[0].Section, got[1].Section, got[2].Section)
	}
	if got[1].PayloadJSON != `{"from":"generating","to":"parsing"}` {
		t.Errorf("PayloadJSON = %q", got[1].PayloadJSON)
	}
}

func TestEventRepo_ListByRun_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := (&EventRepo{}).ListByRun(context.Background(), db, "nonexistent")
	if err != nil {
		t.Fatalf("ListByRun: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil slice for empty result, got %v", got)
	}
}
