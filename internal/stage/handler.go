package stage

import (
	"context"
	"log/slog"
	"time"
)

// Handler is one pipeline stage. Prepare discovers the items to process,
// Process handles a single item, and Finish writes any stage-level output
// after every item was attempted.
type Handler interface {
	Name() string
	Prepare(ctx context.Context) ([]string, error)
	Process(ctx context.Context, item string) error
	Finish(ctx context.Context) error
}

// Preconditioner is implemented by stages that can be skipped when their
// output already holds. The reason is logged with the skip.
type Preconditioner interface {
	Precondition(ctx context.Context) (skip bool, reason string, err error)
}

// Flusher is implemented by stages that buffer per-item output. Flush runs
// before every checkpoint save so logs never trail checkpoint state.
type Flusher interface {
	Flush(ctx context.Context) error
}

// HealthChecker is implemented by stages that depend on external tools or services.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Checkpointed is implemented by stages that opt out of checkpoints. Stages
// whose output is rebuilt every run (duplicate grouping, the index) return false.
type Checkpointed interface {
	Checkpointed() bool
}

// UsesCheckpoint reports whether h records completed items.
func UsesCheckpoint(h Handler) bool {
	if c, ok := h.(Checkpointed); ok {
		return c.Checkpointed()
	}
	return true
}

// ItemError is a failed item and the final error message after retries.
type ItemError struct {
	Path    string
	Message string
}

// Result aggregates one stage execution.
type Result struct {
	Stage     string
	Expected  int
	Processed int
	Skipped   int
	Failed    int
	Errors    []ItemError
	// Counters holds stage-specific tallies such as date fallbacks.
	Counters map[string]int
	Duration time.Duration
}

// Succeeded counts items that ended in a good state, including no-op skips.
func (r Result) Succeeded() int { return r.Processed + r.Skipped }

// AddCounter increments a named counter.
func (r *Result) AddCounter(name string, delta int) {
	if r.Counters == nil {
		r.Counters = make(map[string]int)
	}
	r.Counters[name] += delta
}

// LoggerAware is implemented by stages that want the runner's stage-scoped logger.
type LoggerAware interface {
	SetLogger(logger *slog.Logger)
}

// Resumable is implemented by stages whose output depends on whether earlier
// progress exists, e.g. to append to a log instead of truncating it. The
// runner calls Resume before Prepare with the number of checkpointed items.
type Resumable interface {
	Resume(completed int)
}

// Counting is implemented by stages that keep their own tallies. The runner
// merges them into Result.Counters when the stage ends.
type Counting interface {
	Counters() map[string]int
}

// Parallel is implemented by stages whose items are independent and may be
// processed on a worker pool. Stages without it always run sequentially.
type Parallel interface {
	Workers() int
}
