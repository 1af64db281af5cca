package checkpoint

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"mediaorganizer/internal/services"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "checkpoints"))
	set, err := store.Load("organize_by_date")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Cardinality() != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
	if store.Exists("organize_by_date") {
		t.Fatal("Exists should be false before save")
	}
}

func TestSaveOverwritesWithSortedSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "checkpoints")
	store := NewStore(dir)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	if err := store.Save("tag_images", NewSet("/lib/b.jpg", "/lib/a.jpg", "/lib/c.jpg")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save("tag_images", NewSet("/lib/b.jpg", "/lib/a.jpg")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.Path("tag_images"))
	if err != nil {
		t.Fatal(err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Stage != "tag_images" || !record.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected record header %+v", record)
	}
	if want := []string{"/lib/a.jpg", "/lib/b.jpg"}; !reflect.DeepEqual(record.Completed, want) {
		t.Fatalf("completed = %v, want %v (save must overwrite, not append)", record.Completed, want)
	}

	loaded, err := store.Load("tag_images")
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Equal(mapset.NewSet("/lib/a.jpg", "/lib/b.jpg")) {
		t.Fatalf("loaded = %v", loaded)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSaveEmptySetWritesEmptyList(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save("build_index", nil); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(store.Path("build_index"))
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	if list, ok := record["completed"].([]any); !ok || len(list) != 0 {
		t.Fatalf("expected empty completed list, got %v", record["completed"])
	}
}

func TestSaveFailureIsWriteFailed(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(filepath.Join(blocker, "checkpoints"))
	err := store.Save("move_duplicates", NewSet("/a"))
	if !errors.Is(err, services.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if err := store.Save("../escape", NewSet("/a")); !errors.Is(err, services.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed for bad stage name, got %v", err)
	}
}

func TestLoadCorruptIsSetupFailure(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := os.WriteFile(store.Path("tag_videos"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("tag_videos"); !errors.Is(err, services.ErrSetupFailure) {
		t.Fatalf("expected ErrSetupFailure, got %v", err)
	}
}

func TestResetAndList(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save("organize_by_date", NewSet("/a", "/b")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("detect_nsfw", NewSet("/c")); err != nil {
		t.Fatal(err)
	}

	infos, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].Stage != "detect_nsfw" || infos[1].Count != 2 {
		t.Fatalf("unexpected list %+v", infos)
	}

	if err := store.Reset("organize_by_date"); err != nil {
		t.Fatal(err)
	}
	if err := store.Reset("organize_by_date"); err != nil {
		t.Fatalf("second reset should be a no-op: %v", err)
	}
	infos, _ = store.List()
	if len(infos) != 1 {
		t.Fatalf("expected one checkpoint after reset, got %+v", infos)
	}
}

func TestListMissingDir(t *testing.T) {
	infos, err := NewStore(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || infos != nil {
		t.Fatalf("List on missing dir = %v, %v", infos, err)
	}
}
