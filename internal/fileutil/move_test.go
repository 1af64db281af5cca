package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediaorganizer/internal/services"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMoveThenRepeatIsAlreadySatisfied(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "a.jpg")
	dst := filepath.Join(dir, "Organized", "2024", "05", "01", "a.jpg")
	write(t, src, "photo")

	first := Move(src, dst)
	if first.Outcome != Moved || first.Err != nil {
		t.Fatalf("first move = %+v", first)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "photo" {
		t.Fatalf("destination content %q, %v", got, err)
	}

	second := Move(src, dst)
	if second.Outcome != AlreadySatisfied {
		t.Fatalf("second move = %+v", second)
	}
	if !errors.Is(second.AsError(), services.ErrAlreadyProcessed) {
		t.Fatalf("AsError = %v", second.AsError())
	}
	if first.AsError() != nil {
		t.Fatalf("moved result should not be an error")
	}
}

func TestMoveSameFileIsSatisfied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	write(t, path, "x")
	if res := Move(path, path); res.Outcome != AlreadySatisfied {
		t.Fatalf("Move onto itself = %+v", res)
	}
}

func TestMoveFailures(t *testing.T) {
	dir := t.TempDir()

	missing := Move(filepath.Join(dir, "nope.jpg"), filepath.Join(dir, "out", "nope.jpg"))
	if missing.Outcome != Failed || !errors.Is(missing.Err, services.ErrUnreadable) {
		t.Fatalf("missing source = %+v", missing)
	}

	src := filepath.Join(dir, "b.jpg")
	dst := filepath.Join(dir, "taken.jpg")
	write(t, src, "mine")
	write(t, dst, "theirs")
	clash := Move(src, dst)
	if clash.Outcome != Failed || !errors.Is(clash.AsError(), services.ErrValidation) {
		t.Fatalf("clash = %+v", clash)
	}
	if got, _ := os.ReadFile(dst); string(got) != "theirs" {
		t.Fatal("existing destination must be untouched")
	}
}

func TestMoveCompletesInterruptedCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "c.jpg")
	dst := filepath.Join(dir, "Duplicates", "c.jpg")
	write(t, src, "same")
	write(t, dst, "same")

	res := Move(src, dst)
	if res.Outcome != Moved {
		t.Fatalf("expected Moved, got %+v", res)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be removed")
	}
}

func TestPlannerCollisionsAndMemo(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "Duplicates")
	write(t, filepath.Join(dest, "a.jpg"), "occupied")

	p := NewPlanner()
	first := p.Plan("/lib/x/a.jpg", dest, GroupDupSuffix(3))
	if want := filepath.Join(dest, "a_dup3_1.jpg"); first != want {
		t.Fatalf("first = %s, want %s", first, want)
	}
	second := p.Plan("/lib/y/a.jpg", dest, GroupDupSuffix(3))
	if want := filepath.Join(dest, "a_dup3_2.jpg"); second != want {
		t.Fatalf("second = %s, want %s", second, want)
	}
	if again := p.Plan("/lib/x/a.jpg", dest, GroupDupSuffix(3)); again != first {
		t.Fatalf("retry must reuse %s, got %s", first, again)
	}

	plain := p.Plan("/lib/z/b.png", dest, nil)
	if plain != filepath.Join(dest, "b.png") {
		t.Fatalf("plain = %s", plain)
	}
	write(t, filepath.Join(dest, "c.png"), "occupied")
	if got := p.Plan("/lib/z/c.png", dest, DupSuffix); got != filepath.Join(dest, "c_dup1.png") {
		t.Fatalf("DupSuffix = %s", got)
	}
}

func TestPlannerSeed(t *testing.T) {
	p := NewPlanner()
	p.Seed("/lib/a.jpg", "/lib/Duplicates/a_dup1_1.jpg")
	if got := p.Plan("/lib/a.jpg", "/lib/Duplicates", GroupDupSuffix(1)); got != "/lib/Duplicates/a_dup1_1.jpg" {
		t.Fatalf("seeded plan = %s", got)
	}
	if got, ok := p.Planned("/lib/a.jpg"); !ok || got != "/lib/Duplicates/a_dup1_1.jpg" {
		t.Fatalf("Planned = %s, %v", got, ok)
	}
	if src, ok := p.Owner("/lib/Duplicates/a_dup1_1.jpg"); !ok || src != "/lib/a.jpg" {
		t.Fatalf("Owner = %s, %v", src, ok)
	}
	if _, ok := p.Owner("/lib/Duplicates/a.jpg"); ok {
		t.Fatal("unreserved destination must have no owner")
	}
}
