package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStartAndFinishRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.StartRun(ctx, "full")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero run id")
	}
	if err := db.FinishRun(ctx, id, RunSuccess, "backup successful"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := db.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id || r.Mode != "full" || r.Status != RunSuccess || r.Message != "backup successful" {
		t.Fatalf("unexpected run: %+v", r)
	}
	if r.CompletedAt == nil || r.CompletedAt.Before(r.StartedAt) {
		t.Fatalf("completion time not recorded: %+v", r)
	}
}

func TestRecentRuns_MostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, _ := db.StartRun(ctx, "full")
	second, _ := db.StartRun(ctx, "incr")
	_ = db.FinishRun(ctx, first, RunSuccess, "")
	_ = db.FinishRun(ctx, second, RunPartial, "pruning failed")

	runs, err := db.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != second {
		t.Fatalf("expected only the most recent run, got %+v", runs)
	}
	if runs[0].Status != RunPartial {
		t.Fatalf("status = %q, want partial", runs[0].Status)
	}
}

func TestRecentRuns_InProgress(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.StartRun(ctx, "incr"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	runs, err := db.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != RunInProgress || runs[0].CompletedAt != nil {
		t.Fatalf("unexpected in-progress run: %+v", runs[0])
	}
}
