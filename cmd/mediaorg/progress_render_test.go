package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"mediaorganizer/internal/stageexec"
)

func TestProgressLineRewritesPerStage(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLine(&buf, false)

	p.Update(stageexec.Progress{Stage: "tag_images", Index: 1, Total: 2, Path: "/lib/a.jpg", Outcome: stageexec.OutcomeProcessed})
	p.Update(stageexec.Progress{Stage: "tag_images", Index: 2, Total: 2, Path: "/lib/b.jpg", Outcome: stageexec.OutcomeFailed, Err: errors.New("boom")})
	p.Update(stageexec.Progress{Stage: "build_index", Index: 1, Total: 1, Path: "/lib/x", Outcome: stageexec.OutcomeProcessed})
	p.Done()
	p.Done()

	out := buf.String()
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("expected one finished line per stage, got %d in %q", got, out)
	}
	if got := strings.Count(out, "\r"+ansiClearLine); got != 3 {
		t.Fatalf("expected every update to redraw the line, got %d", got)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if !strings.HasSuffix(lines[0], "Tag Images:          [WARN] 2/2 failed b.jpg") {
		t.Fatalf("unexpected final tag line %q", lines[0])
	}
	if !strings.Contains(lines[1], "Build Index:") || !strings.Contains(lines[1], "[INFO] 1/1 processed x") {
		t.Fatalf("unexpected index line %q", lines[1])
	}
}

func TestShortNameKeepsTail(t *testing.T) {
	long := "/lib/" + strings.Repeat("a", 50) + ".jpg"
	got := shortName(long)
	if len(got) != progressNameMax || !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "a.jpg") {
		t.Fatalf("shortName = %q", got)
	}
	if shortName("/lib/b.jpg") != "b.jpg" {
		t.Fatal("short names must pass through")
	}
}
