package models

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewDatabase returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndListRuns(t *testing.T) {
	db := openTestDatabase(t)
	base := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

	for i, kind := range []RunKind{RunBootstrap, RunDaily, RunDaily} {
		run := &RunRecord{Kind: kind, StartedAt: base.Add(time.Duration(i) * time.Hour), Added: i}
		if err := db.CreateRun(run); err != nil {
			t.Fatalf("CreateRun returned error: %v", err)
		}
		if run.ID == "" {
			t.Fatal("expected generated run ID")
		}
	}

	recent, err := db.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recent))
	}
	if recent[0].Added != 2 {
		t.Errorf("expected newest run first, got %+v", recent[0])
	}

	daily, err := db.RunsByKind(RunDaily)
	if err != nil {
		t.Fatalf("RunsByKind returned error: %v", err)
	}
	if len(daily) != 2 {
		t.Errorf("expected 2 daily runs, got %d", len(daily))
	}

	fetched, err := db.GetRun(recent[0].ID)
	if err != nil {
		t.Fatalf("GetRun returned error: %v", err)
	}
	if fetched.Kind != RunDaily {
		t.Errorf("unexpected kind %q", fetched.Kind)
	}
}

func TestPruneRuns(t *testing.T) {
	db := openTestDatabase(t)
	old := &RunRecord{Kind: RunDaily, StartedAt: time.Now().AddDate(0, 0, -100)}
	recent := &RunRecord{Kind: RunDaily, StartedAt: time.Now()}
	for _, run := range []*RunRecord{old, recent} {
		if err := db.CreateRun(run); err != nil {
			t.Fatalf("CreateRun returned error: %v", err)
		}
	}

	removed, err := db.PruneRuns(time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PruneRuns returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 pruned run, got %d", removed)
	}
	if _, err := db.GetRun(old.ID); err == nil {
		t.Error("expected old run to be gone")
	}
}
