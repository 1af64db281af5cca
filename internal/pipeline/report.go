package pipeline

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"mediaorganizer/internal/fileutil"
)

// ReportDir is the subdirectory of the log directory holding run reports.
const ReportDir = "runs"

// ReportPattern matches report file names for retention pruning.
const ReportPattern = "run-*.json"

// Report is the JSON form of a run summary written after every run.
type Report struct {
	RunID        string          `json:"run_id"`
	LibraryDir   string          `json:"library_dir"`
	Status       State           `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	AbortedStage string          `json:"aborted_stage,omitempty"`
	AbortReason  string          `json:"abort_reason,omitempty"`
	Stages       []ReportStage   `json:"stages"`
	Errors       []ReportFailure `json:"errors"`
}

// ReportStage is one stage row of a Report.
type ReportStage struct {
	Name       string         `json:"name"`
	State      State          `json:"state"`
	Reason     string         `json:"reason,omitempty"`
	Expected   int            `json:"expected"`
	Processed  int            `json:"processed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	DurationMS int64          `json:"duration_ms"`
	Counters   map[string]int `json:"counters,omitempty"`
}

// ReportFailure is one failed item.
type ReportFailure struct {
	Stage   string `json:"stage"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// NewReport converts a summary.
func NewReport(libraryDir string, s Summary) Report {
	report := Report{
		RunID:        s.RunID,
		LibraryDir:   libraryDir,
		Status:       s.Status,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		AbortedStage: s.AbortedStage,
		AbortReason:  s.AbortReason,
		Stages:       make([]ReportStage, 0, len(s.Stages)),
		Errors:       []ReportFailure{},
	}
	for _, st := range s.Stages {
		report.Stages = append(report.Stages, ReportStage{
			Name:       st.Name,
			State:      st.State,
			Reason:     st.Reason,
			Expected:   st.Result.Expected,
			Processed:  st.Result.Processed,
			Skipped:    st.Result.Skipped,
			Failed:     st.Result.Failed,
			DurationMS: st.Result.Duration.Milliseconds(),
			Counters:   st.Result.Counters,
		})
	}
	for _, e := range s.ItemErrors() {
		report.Errors = append(report.Errors, ReportFailure{Stage: e.Stage, Path: e.Path, Message: e.Message})
	}
	return report
}

// ReportPath returns the report file for s, named by start time and run id.
func ReportPath(logDir string, s Summary) string {
	name := fmt.Sprintf("run-%s-%s.json", s.StartedAt.UTC().Format("20060102T150405Z"), shortID(s.RunID))
	return filepath.Join(logDir, ReportDir, name)
}

// WriteReport writes the summary report for s and returns its path.
func WriteReport(logDir, libraryDir string, s Summary) (string, error) {
	data, err := json.MarshalIndent(NewReport(libraryDir, s), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run report: %w", err)
	}
	path := ReportPath(logDir, s)
	if err := fileutil.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write run report: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
