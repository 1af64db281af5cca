package pipeline

import (
	"time"

	"mediaorganizer/internal/stage"
)

// State is the lifecycle state of a stage or of the whole run.
type State string

const (
	StatePending             State = "pending"
	StateRunning             State = "running"
	StateCompleted           State = "completed"
	StateCompletedWithErrors State = "completed_with_errors"
	StateAborted             State = "aborted"
	StateSkipped             State = "skipped"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCompletedWithErrors, StateAborted, StateSkipped:
		return true
	default:
		return false
	}
}

// StageReport is the state and result of one stage in a run.
type StageReport struct {
	Name   string
	State  State
	Result stage.Result
	// Reason explains a skip or an abort.
	Reason    string
	StartedAt time.Time
}

// Summary describes a finished run.
type Summary struct {
	RunID        string
	Status       State
	Stages       []StageReport
	StartedAt    time.Time
	FinishedAt   time.Time
	AbortedStage string
	AbortReason  string
}

// Duration returns the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Totals sums item counts across stages.
func (s Summary) Totals() (processed, skipped, failed int) {
	for _, st := range s.Stages {
		processed += st.Result.Processed
		skipped += st.Result.Skipped
		failed += st.Result.Failed
	}
	return processed, skipped, failed
}

// Stage returns the report for name.
func (s Summary) Stage(name string) (StageReport, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return StageReport{}, false
}

// ItemErrors returns every failed item across stages, tagged with the stage name.
func (s Summary) ItemErrors() []StageItemError {
	var out []StageItemError
	for _, st := range s.Stages {
		for _, e := range st.Result.Errors {
			out = append(out, StageItemError{Stage: st.Name, ItemError: e})
		}
	}
	return out
}

// StageItemError is an item failure attributed to its stage.
type StageItemError struct {
	Stage string
	stage.ItemError
}
