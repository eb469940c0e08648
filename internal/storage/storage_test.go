package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), ".effectlint", "qa.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	db := setupTestDB(t)

	if !fileExists(db.Path()) {
		t.Fatalf("Database file was not created at %s", db.Path())
	}
	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("Failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("Expected schema version %d, got %d", currentSchemaVersion, version)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa.db")
	db, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := NewQARepository(db).CreateRun(ctx, &Run{RunID: "r1", Manifest: "m.toml", StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	db.Close()

	db, err = Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if _, err := NewQARepository(db).GetRun(ctx, "r1"); err != nil {
		t.Errorf("GetRun after reopen: %v", err)
	}
}

func TestQARepository_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQARepository(db)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateRun(ctx, &Run{RunID: "run-1", Manifest: "qa.toml", StartedAt: started}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	diagnostics := strings.Repeat("a.ts(3,5): error TS2345: Argument of type 'string' is not assignable.\n", 50)
	items := []Item{
		{RunID: "run-1", ItemID: "b", Path: "b.ts", RuleIDs: []string{"node-fs"}, FindingCount: 1, FixCount: 1, Warnings: []string{"[VALIDATOR_FAILED] tsc failed"}, Diagnostics: diagnostics, DurationMs: 12},
		{RunID: "run-1", ItemID: "a", Path: "a.ts", FindingCount: 0, DurationMs: 3},
	}
	if err := repo.SaveItems(ctx, items); err != nil {
		t.Fatalf("SaveItems: %v", err)
	}
	finished := started.Add(time.Minute)
	if err := repo.FinishRun(ctx, "run-1", finished, 2, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !run.StartedAt.Equal(started) || run.FinishedAt == nil || !run.FinishedAt.Equal(finished) {
		t.Errorf("unexpected run times: %+v", run)
	}
	if run.ItemCount != 2 || run.WarningCount != 1 {
		t.Errorf("unexpected counters: %+v", run)
	}

	got, err := repo.ListItems(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(got) != 2 || got[0].ItemID != "a" || got[1].ItemID != "b" {
		t.Fatalf("unexpected items: %+v", got)
	}
	if got[1].Diagnostics != diagnostics {
		t.Error("diagnostics did not round-trip")
	}
	if len(got[0].RuleIDs) != 0 || got[0].Diagnostics != "" {
		t.Errorf("empty item did not round-trip: %+v", got[0])
	}
	if len(got[1].Warnings) != 1 {
		t.Errorf("warnings did not round-trip: %+v", got[1].Warnings)
	}
}

func TestQARepository_UnknownRun(t *testing.T) {
	repo := NewQARepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun error = %v, want ErrRunNotFound", err)
	}
	if err := repo.FinishRun(ctx, "missing", time.Now(), 0, 0); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun error = %v, want ErrRunNotFound", err)
	}
}

func TestQARepository_ListRunsNewestFirst(t *testing.T) {
	repo := NewQARepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := repo.CreateRun(ctx, &Run{RunID: id, Manifest: "m", StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "new" || runs[1].RunID != "mid" {
		t.Errorf("unexpected order: %v, %v", runs[0].RunID, runs[1].RunID)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	in := []byte(strings.Repeat("diagnostic ", 100))
	out := compress(in)
	if len(out) >= len(in) {
		t.Errorf("expected compression, got %d >= %d bytes", len(out), len(in))
	}
	back, err := decompress(out)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(back) != string(in) {
		t.Error("round trip mismatch")
	}
	if compress(nil) != nil {
		t.Error("empty input should stay empty")
	}
}
