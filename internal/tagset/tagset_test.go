package tagset

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mediaorganizer/internal/services"
)

func readJSON(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return tags
}

func TestInitMergesDefaultsSorted(t *testing.T) {
	dir := t.TempDir()
	sfw, _ := Paths(dir)
	if err := os.WriteFile(sfw, []byte(`["Zebra", "dog", "  Red  Car "]`), 0o644); err != nil {
		t.Fatal(err)
	}

	v, discarded, err := Init(sfw, DefaultSFW)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if discarded {
		t.Fatal("valid file must not be discarded")
	}
	got := readJSON(t, sfw)
	if len(got) != len(DefaultSFW)+2 {
		t.Fatalf("unexpected tag count %d: %v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("tags not sorted: %v", got)
		}
	}
	if !v.Contains("ZEBRA") || !v.Contains("red car") {
		t.Fatalf("expected normalized tags, got %v", v.Tags())
	}
}

func TestInitIsIdempotent(t *testing.T) {
	_, nsfw := Paths(t.TempDir())
	if _, _, err := Init(nsfw, DefaultNSFW); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(nsfw)
	if _, _, err := Init(nsfw, DefaultNSFW); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(nsfw)
	if string(first) != string(second) {
		t.Fatalf("second init changed the file:\n%s\n%s", first, second)
	}
}

func TestInitReplacesMalformedFile(t *testing.T) {
	sfw := filepath.Join(t.TempDir(), SFWFile)
	if err := os.WriteFile(sfw, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	v, discarded, err := Init(sfw, []string{"sky"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !discarded || v.Len() != 1 {
		t.Fatalf("expected malformed file replaced, discarded=%v tags=%v", discarded, v.Tags())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	v, err := Load(filepath.Join(dir, "missing.json"))
	if err != nil || v.Len() != 0 {
		t.Fatalf("missing file should load empty: %v %v", v, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); !errors.Is(err, services.ErrSetupFailure) {
		t.Fatalf("expected ErrSetupFailure, got %v", err)
	}
}

func TestAddReturnsOnlyNewTags(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), SFWFile), "dog")
	added := v.Add("Dog", "cat", "", "cat")
	if len(added) != 1 || added[0] != "cat" {
		t.Fatalf("unexpected added tags %v", added)
	}
	if err := v.Save(); err != nil {
		t.Fatal(err)
	}
	if got := readJSON(t, v.Path()); len(got) != 2 || got[0] != "cat" {
		t.Fatalf("unexpected saved tags %v", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Sunset ":         "sunset",
		"HOT  AIR\tballoon": "hot air balloon",
		"":                  "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
