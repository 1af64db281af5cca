package runstore_test

import (
	"context"
	"testing"
	"time"

	"mediaorganizer/internal/pipeline"
	"mediaorganizer/internal/runstore"
	"mediaorganizer/internal/stage"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSummary(id string, started time.Time) pipeline.Summary {
	return pipeline.Summary{
		RunID:     id,
		Status:    pipeline.StateCompletedWithErrors,
		StartedAt: started,
		Stages: []pipeline.StageReport{
			{
				Name:  "find_duplicates",
				State: pipeline.StateCompleted,
				Result: stage.Result{
					Expected:  4,
					Processed: 4,
					Duration:  1500 * time.Millisecond,
				},
			},
			{
				Name:  "organize_by_date",
				State: pipeline.StateCompletedWithErrors,
				Result: stage.Result{
					Expected:  3,
					Processed: 2,
					Failed:    1,
					Errors:    []stage.ItemError{{Path: "/lib/bad.jpg", Message: "permission denied"}},
				},
			},
			{Name: "detect_nsfw", State: pipeline.StateSkipped, Reason: "no classifier configured"},
		},
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, "/lib", sampleSummary("run-1", started)); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != "run-1" || run.LibraryDir != "/lib" || run.Status != pipeline.StateCompletedWithErrors {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !run.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", run.StartedAt, started)
	}
	if run.ErrorCount != 1 {
		t.Fatalf("error count = %d, want 1", run.ErrorCount)
	}
	if len(run.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(run.Stages))
	}
	if run.Stages[0].Stage != "find_duplicates" || run.Stages[0].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected first stage: %+v", run.Stages[0])
	}
	if run.Stages[2].State != pipeline.StateSkipped || run.Stages[2].Reason != "no classifier configured" {
		t.Fatalf("unexpected skipped stage: %+v", run.Stages[2])
	}
}

func TestRecordReplacesExistingRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	summary := sampleSummary("run-1", started)
	if err := store.Record(ctx, "/lib", summary); err != nil {
		t.Fatalf("Record: %v", err)
	}
	summary.Status = pipeline.StateCompleted
	summary.Stages = summary.Stages[:1]
	if err := store.Record(ctx, "/lib", summary); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	runs, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != pipeline.StateCompleted {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if len(runs[0].Stages) != 1 || runs[0].ErrorCount != 0 {
		t.Fatalf("expected stages and errors replaced, got %+v", runs[0])
	}
}

func TestRecentOrdersNewestFirstAndLimits(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, "/lib", sampleSummary(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestPruneRemovesOldRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Record(ctx, "/lib", sampleSummary("old", base)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, "/lib", sampleSummary("new", base.Add(48*time.Hour))); err != nil {
		t.Fatalf("Record: %v", err)
	}

	removed, err := store.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	runs, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Fatalf("unexpected runs after prune: %+v", runs)
	}
}

func TestRecordRejectsEmptyRunID(t *testing.T) {
	store := openStore(t)
	if err := store.Record(context.Background(), "/lib", pipeline.Summary{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	first, err := runstore.Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Record(ctx, "/lib", sampleSummary("run-1", time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = first.Close()

	second, err := runstore.Open(ctx, dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	runs, err := second.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected run to survive reopen, got %d", len(runs))
	}
}
