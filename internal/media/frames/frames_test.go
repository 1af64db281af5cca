package frames

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"mediaorganizer/internal/services"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestSampleReturnsFramesInOrder(t *testing.T) {
	stub := writeStub(t, `for last; do :; done
dir=$(dirname "$last")
touch "$dir/frame_0003.jpg" "$dir/frame_0001.jpg" "$dir/frame_0002.jpg"
`)
	dir := filepath.Join(t.TempDir(), "frames")
	paths, err := Sample(context.Background(), "/videos/clip.mp4", dir, Options{Binary: stub, IntervalSeconds: 1, MaxFrames: 2})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	want := []string{filepath.Join(dir, "frame_0001.jpg"), filepath.Join(dir, "frame_0002.jpg")}
	if len(paths) != len(want) {
		t.Fatalf("expected %d frames, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("frame %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestSampleToolFailure(t *testing.T) {
	stub := writeStub(t, "echo 'moov atom not found' >&2\nexit 1\n")
	_, err := Sample(context.Background(), "/videos/broken.mp4", t.TempDir(), Options{Binary: stub, MaxFrames: 4})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestSampleNoFrames(t *testing.T) {
	stub := writeStub(t, "exit 0\n")
	_, err := Sample(context.Background(), "/videos/empty.mp4", t.TempDir(), Options{Binary: stub, MaxFrames: 4})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSampleRejectsZeroLimit(t *testing.T) {
	if _, err := Sample(context.Background(), "/videos/a.mp4", t.TempDir(), Options{}); err == nil {
		t.Fatal("expected error for zero frame limit")
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		paths []string
		size  int
		want  []int
	}{
		{nil, 2, nil},
		{[]string{"a", "b", "c"}, 2, []int{2, 1}},
		{[]string{"a", "b"}, 2, []int{2}},
		{[]string{"a", "b"}, 0, []int{1, 1}},
	}
	for _, tt := range tests {
		got := Batches(tt.paths, tt.size)
		if len(got) != len(tt.want) {
			t.Fatalf("Batches(%v, %d) = %v", tt.paths, tt.size, got)
		}
		for i, n := range tt.want {
			if len(got[i]) != n {
				t.Fatalf("batch %d has %d entries, want %d", i, len(got[i]), n)
			}
		}
	}
}
