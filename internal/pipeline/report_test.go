package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaorganizer/internal/stage"
)

func TestWriteReport(t *testing.T) {
	logDir := t.TempDir()
	started := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	summary := Summary{
		RunID:      "0123456789abcdef",
		Status:     StateCompletedWithErrors,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Stages: []StageReport{
			{
				Name:  "organize_by_date",
				State: StateCompletedWithErrors,
				Result: stage.Result{
					Expected:  2,
					Processed: 1,
					Failed:    1,
					Duration:  1500 * time.Millisecond,
					Errors:    []stage.ItemError{{Path: "/lib/a.jpg", Message: "permission denied"}},
					Counters:  map[string]int{"date_fallback": 1},
				},
			},
			{Name: "detect_nsfw", State: StateSkipped, Reason: "no NSFW classifier configured"},
		},
	}

	path, err := WriteReport(logDir, "/lib", summary)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if want := filepath.Join(logDir, ReportDir, "run-20240309T140506Z-01234567.json"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	if matched, _ := filepath.Match(ReportPattern, filepath.Base(path)); !matched {
		t.Fatalf("report name %s does not match retention pattern", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.LibraryDir != "/lib" || len(report.Stages) != 2 || report.Stages[0].DurationMS != 1500 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Stage != "organize_by_date" || report.Errors[0].Path != "/lib/a.jpg" {
		t.Fatalf("unexpected errors %+v", report.Errors)
	}
	if !strings.Contains(string(data), `"errors": [`) {
		t.Fatal("errors must encode as an array")
	}
}

func TestNewReportEmptyErrors(t *testing.T) {
	report := NewReport("/lib", Summary{RunID: "x", Status: StateCompleted})
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"errors":[]`) {
		t.Fatalf("expected empty errors array, got %s", data)
	}
}
