package stageexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"mediaorganizer/internal/checkpoint"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/stage"
)

type fakeHandler struct {
	name       string
	items      []string
	prepareErr error
	finishErr  error
	// failures maps an item to the errors returned on successive attempts.
	failures map[string][]error
	noCheck  bool

	mu        sync.Mutex
	calls     map[string]int
	processed []string
	flushed   []string
	pending   []string
	flushes   int
	finished  bool
	resumed   int
}

func newFake(items ...string) *fakeHandler {
	return &fakeHandler{name: "tag_images", items: items, failures: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) Prepare(context.Context) ([]string, error) {
	return f.items, f.prepareErr
}

func (f *fakeHandler) Process(_ context.Context, item string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls[item]
	f.calls[item]++
	if errs := f.failures[item]; call < len(errs) && errs[call] != nil {
		return errs[call]
	}
	f.processed = append(f.processed, item)
	f.pending = append(f.pending, item)
	return nil
}

func (f *fakeHandler) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	f.flushed = append(f.flushed, f.pending...)
	f.pending = nil
	return nil
}

func (f *fakeHandler) Finish(context.Context) error {
	f.finished = true
	return f.finishErr
}

func (f *fakeHandler) Resume(completed int) { f.resumed = completed }

type rebuiltHandler struct{ *fakeHandler }

func (rebuiltHandler) Checkpointed() bool { return false }

func TestRunResumesFromCheckpoint(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	if err := store.Save("tag_images", checkpoint.NewSet("/lib/a.jpg")); err != nil {
		t.Fatal(err)
	}
	h := newFake("/lib/a.jpg", "/lib/b.jpg")

	var progress []Progress
	res, err := Run(context.Background(), Options{
		Handler:     h,
		Checkpoints: store,
		Resume:      true,
		OnProgress:  func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(h.processed) != 1 || h.processed[0] != "/lib/b.jpg" {
		t.Fatalf("processed = %v, want only b", h.processed)
	}
	if h.calls["/lib/a.jpg"] != 0 {
		t.Fatal("checkpointed item must not reach the handler")
	}
	if res.Processed != 1 || res.Skipped != 1 || res.Failed != 0 || res.Counters[CounterCheckpointed] != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.resumed != 1 || !h.finished {
		t.Fatalf("resumed=%d finished=%v", h.resumed, h.finished)
	}
	if len(progress) != 2 || progress[1].Index != 2 || progress[1].Total != 2 || progress[0].Outcome != OutcomeCheckpointed {
		t.Fatalf("unexpected progress %+v", progress)
	}

	final, err := store.Load("tag_images")
	if err != nil {
		t.Fatal(err)
	}
	if !final.Equal(mapset.NewSet("/lib/a.jpg", "/lib/b.jpg")) {
		t.Fatalf("final checkpoint = %v", final)
	}
}

func TestRunFailOnceThenSucceed(t *testing.T) {
	h := newFake("/lib/a.jpg")
	h.failures["/lib/a.jpg"] = []error{errors.New("transient read error")}
	var itemErrors []string

	res, err := Run(context.Background(), Options{
		Handler:     h,
		OnItemError: func(path string, err error) { itemErrors = append(itemErrors, path) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || res.Failed != 0 || len(res.Errors) != 0 || len(itemErrors) != 0 {
		t.Fatalf("expected processed without error entry, got %+v (item errors %v)", res, itemErrors)
	}
	if h.calls["/lib/a.jpg"] != 2 {
		t.Fatalf("expected exactly one retry, calls=%d", h.calls["/lib/a.jpg"])
	}
}

func TestRunPartialFailure(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	h := newFake("/lib/a.jpg", "/lib/bad.jpg", "/lib/c.jpg")
	bad := services.Wrap(services.ErrUnreadable, "tag_images", "read", "/lib/bad.jpg", errors.New("permission denied"))
	h.failures["/lib/bad.jpg"] = []error{bad, bad, bad}
	var itemErrors []string

	res, err := Run(context.Background(), Options{
		Handler:     h,
		Checkpoints: store,
		OnItemError: func(path string, err error) { itemErrors = append(itemErrors, path) },
	})
	if err != nil {
		t.Fatalf("item failures must not fail the stage: %v", err)
	}
	if res.Processed != 2 || res.Failed != 1 || len(res.Errors) != 1 || res.Errors[0].Path != "/lib/bad.jpg" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Errors[0].Message == "" || len(itemErrors) != 1 {
		t.Fatalf("error entry %+v, callbacks %v", res.Errors, itemErrors)
	}
	if h.calls["/lib/bad.jpg"] != 2 {
		t.Fatalf("failed item attempts = %d, want 2", h.calls["/lib/bad.jpg"])
	}
	final, _ := store.Load("tag_images")
	if final.Contains("/lib/bad.jpg") || final.Cardinality() != 2 {
		t.Fatalf("failed item must not be checkpointed: %v", final)
	}
}

func TestRunAlreadyProcessedCountsAsSkipped(t *testing.T) {
	h := newFake("/lib/a.jpg")
	h.failures["/lib/a.jpg"] = []error{services.Wrap(services.ErrAlreadyProcessed, "", "move", "already moved", nil)}
	store := checkpoint.NewStore(t.TempDir())

	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || res.Processed != 0 || res.Failed != 0 || h.calls["/lib/a.jpg"] != 1 {
		t.Fatalf("unexpected result %+v calls=%d", res, h.calls["/lib/a.jpg"])
	}
	final, _ := store.Load("tag_images")
	if !final.Contains("/lib/a.jpg") {
		t.Fatal("already processed items are complete")
	}
}

func TestRunFlushesBeforeBatchSaves(t *testing.T) {
	dir := t.TempDir()
	store := checkpoint.NewStore(dir)
	items := make([]string, 5)
	for i := range items {
		items[i] = fmt.Sprintf("/lib/%d.jpg", i)
	}
	h := newFake(items...)

	if _, err := Run(context.Background(), Options{Handler: h, Checkpoints: store, BatchSize: 2}); err != nil {
		t.Fatal(err)
	}
	// Two batch saves plus the final save.
	if h.flushes != 3 {
		t.Fatalf("flushes = %d, want 3", h.flushes)
	}
	if len(h.flushed) != 5 || len(h.pending) != 0 {
		t.Fatalf("flushed=%v pending=%v", h.flushed, h.pending)
	}
	final, _ := store.Load("tag_images")
	if final.Cardinality() != 5 {
		t.Fatalf("final checkpoint = %v", final)
	}
}

func TestRunWithoutResumeIgnoresCheckpoint(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	if err := store.Save("tag_images", checkpoint.NewSet("/lib/a.jpg")); err != nil {
		t.Fatal(err)
	}
	h := newFake("/lib/a.jpg")
	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store, Resume: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 || h.resumed != 0 {
		t.Fatalf("unexpected result %+v resumed=%d", res, h.resumed)
	}
}

func TestRunPrepareFailureWritesNoCheckpoint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	store := checkpoint.NewStore(dir)
	h := newFake()
	h.prepareErr = errors.New("open /missing: no such file or directory")

	_, err := Run(context.Background(), Options{Handler: h, Checkpoints: store})
	if !errors.Is(err, services.ErrSetupFailure) {
		t.Fatalf("expected ErrSetupFailure, got %v", err)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Fatal("no checkpoint may be written when prepare fails")
	}
	if h.finished {
		t.Fatal("finish must not run after a failed prepare")
	}
}

func TestRunFinishFailureIsWriteFailed(t *testing.T) {
	h := newFake("/lib/a.jpg")
	h.finishErr = errors.New("disk full")
	_, err := Run(context.Background(), Options{Handler: h})
	if !errors.Is(err, services.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestRunFatalItemErrorStopsStage(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	h := newFake("/lib/a.jpg", "/lib/b.jpg", "/lib/c.jpg")
	h.failures["/lib/b.jpg"] = []error{services.Wrap(services.ErrWriteFailed, "tag_images", "append log", "", errors.New("read-only file system"))}

	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store})
	if !errors.Is(err, services.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if h.calls["/lib/c.jpg"] != 0 {
		t.Fatal("items after a fatal error must not run")
	}
	if res.Processed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	final, _ := store.Load("tag_images")
	if !final.Equal(mapset.NewSet("/lib/a.jpg")) {
		t.Fatalf("progress before the fatal error must be saved, got %v", final)
	}
}

func TestRunCanceledSavesProgress(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	h := newFake("/lib/a.jpg", "/lib/b.jpg")

	_, err := Run(ctx, Options{
		Handler:     h,
		Checkpoints: store,
		BatchSize:   10,
		OnProgress: func(p Progress) {
			if p.Index == 1 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	final, _ := store.Load("tag_images")
	if !final.Equal(mapset.NewSet("/lib/a.jpg")) {
		t.Fatalf("checkpoint after cancel = %v", final)
	}
}

func TestRunPooledProcessesAll(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	items := make([]string, 20)
	for i := range items {
		items[i] = fmt.Sprintf("/lib/%02d.jpg", i)
	}
	h := newFake(items...)
	h.failures["/lib/07.jpg"] = []error{errors.New("flaky")}

	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store, Workers: 4, BatchSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 20 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	got := append([]string(nil), h.flushed...)
	sort.Strings(got)
	if len(got) != 20 {
		t.Fatalf("flushed %d rows, want 20", len(got))
	}
	final, _ := store.Load("tag_images")
	if final.Cardinality() != 20 {
		t.Fatalf("final checkpoint has %d items", final.Cardinality())
	}
}

func TestRunNonCheckpointedStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	store := checkpoint.NewStore(dir)
	h := rebuiltHandler{newFake("/lib/a.jpg")}
	h.name = "find_duplicates"

	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store, Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if store.Exists("find_duplicates") {
		t.Fatal("stages that opt out must not write checkpoints")
	}
	if h.flushes == 0 {
		t.Fatal("flush still runs for non-checkpointed stages")
	}
}

type countingHandler struct{ *fakeHandler }

func (countingHandler) Counters() map[string]int { return map[string]int{"date_fallback": 2} }

func TestRunMergesHandlerCounters(t *testing.T) {
	store := checkpoint.NewStore(t.TempDir())
	if err := store.Save("tag_images", checkpoint.NewSet("/lib/a.jpg")); err != nil {
		t.Fatal(err)
	}
	h := countingHandler{newFake("/lib/a.jpg", "/lib/b.jpg")}
	res, err := Run(context.Background(), Options{Handler: h, Checkpoints: store, Resume: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Counters["date_fallback"] != 2 {
		t.Fatalf("handler counter missing: %v", res.Counters)
	}
	if res.Counters[CounterCheckpointed] != 1 {
		t.Fatalf("runner counter lost: %v", res.Counters)
	}
}

func TestRunNilHandler(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

var _ stage.Flusher = (*fakeHandler)(nil)
