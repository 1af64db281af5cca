package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediaorganizer/internal/checkpoint"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/stage"
	"mediaorganizer/internal/stageexec"
)

// ReasonNoSuccess is the abort reason when every expected item failed.
const ReasonNoSuccess = "no items succeeded"

// Options configures an Orchestrator.
type Options struct {
	Logger      *slog.Logger
	Checkpoints *checkpoint.Store
	Resume      bool
	Retry       stageexec.RetryPolicy
	BatchSize   int
	// Workers overrides the pool size of parallel stages when positive.
	Workers int
	// RunID overrides the generated run id.
	RunID string

	OnProgress      func(stageexec.Progress)
	OnItemError     func(stageName, path string, err error)
	OnStageFinished func(StageReport)
}

// Orchestrator runs stages in order.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{opts: opts, logger: logger, now: time.Now}
}

// Run executes handlers in order and returns the run summary.
func (o *Orchestrator) Run(ctx context.Context, handlers []stage.Handler) Summary {
	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithRunID(o.logger, runID)

	summary := Summary{RunID: runID, Status: StateRunning, StartedAt: o.now()}
	summary.Stages = make([]StageReport, len(handlers))
	for i, h := range handlers {
		summary.Stages[i] = StageReport{Name: h.Name(), State: StatePending}
	}

	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.Int("stages", len(handlers)),
		logging.Bool("resume", o.opts.Resume),
	)

	withErrors := false
	for i, h := range handlers {
		report := &summary.Stages[i]
		o.runStage(ctx, logger, h, report)
		if o.opts.OnStageFinished != nil {
			o.opts.OnStageFinished(*report)
		}
		switch report.State {
		case StateAborted:
			summary.Status = StateAborted
			summary.AbortedStage = report.Name
			summary.AbortReason = report.Reason
		case StateCompletedWithErrors:
			withErrors = true
		}
		if summary.Status == StateAborted {
			break
		}
	}

	if summary.Status != StateAborted {
		summary.Status = StateCompleted
		if withErrors {
			summary.Status = StateCompletedWithErrors
		}
	}
	summary.FinishedAt = o.now()

	processed, skipped, failed := summary.Totals()
	attrs := []logging.Attr{
		logging.String("status", string(summary.Status)),
		logging.Int("processed", processed),
		logging.Int("skipped", skipped),
		logging.Int("failed", failed),
		logging.Duration("duration", summary.Duration()),
	}
	if summary.Status == StateAborted {
		logging.ErrorWithContext(logger, "pipeline aborted", "pipeline_aborted", append(attrs,
			logging.String(logging.FieldStage, summary.AbortedStage),
			logging.String("reason", summary.AbortReason),
			logging.String(logging.FieldErrorHint, "fix the reported problem and run again; completed items are checkpointed"),
		)...)
	} else {
		attrs = append(attrs, logging.String(logging.FieldEventType, "pipeline_complete"))
		logger.Info("pipeline finished", logging.Args(attrs...)...)
	}
	return summary
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, h stage.Handler, report *StageReport) {
	name := h.Name()
	report.StartedAt = o.now()
	stageLogger := logging.WithContext(services.WithStage(ctx, name), logger)

	if err := ctx.Err(); err != nil {
		report.State = StateAborted
		report.Reason = "canceled"
		return
	}

	if pre, ok := h.(stage.Preconditioner); ok {
		skip, reason, err := pre.Precondition(ctx)
		if err != nil {
			report.State = StateAborted
			report.Reason = err.Error()
			logging.ErrorWithContext(stageLogger, "stage precondition failed", "stage_precondition_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, services.Kind(err)),
			)
			return
		}
		if skip {
			report.State = StateSkipped
			report.Reason = reason
			report.Result = stage.Result{Stage: name}
			stageLogger.Info("stage skipped",
				logging.String(logging.FieldEventType, "stage_skipped"),
				logging.String("reason", reason),
			)
			return
		}
	}

	report.State = StateRunning
	result, err := stageexec.Run(ctx, stageexec.Options{
		Logger:      logger,
		Handler:     h,
		Checkpoints: o.opts.Checkpoints,
		Resume:      o.opts.Resume,
		Retry:       o.opts.Retry,
		BatchSize:   o.opts.BatchSize,
		Workers:     o.workers(h),
		OnProgress:  o.opts.OnProgress,
		OnItemError: o.itemErrorCallback(name),
	})
	report.Result = result

	switch {
	case err != nil:
		report.State = StateAborted
		report.Reason = abortReason(err)
	case result.Expected > 0 && result.Succeeded() == 0:
		report.State = StateAborted
		report.Reason = ReasonNoSuccess
	case result.Failed > 0:
		report.State = StateCompletedWithErrors
	default:
		report.State = StateCompleted
	}
}

func (o *Orchestrator) workers(h stage.Handler) int {
	p, ok := h.(stage.Parallel)
	if !ok {
		return 1
	}
	if o.opts.Workers > 0 {
		return o.opts.Workers
	}
	return max(p.Workers(), 1)
}

func (o *Orchestrator) itemErrorCallback(stageName string) func(string, error) {
	if o.opts.OnItemError == nil {
		return nil
	}
	return func(path string, err error) {
		o.opts.OnItemError(stageName, path, err)
	}
}

func abortReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return err.Error()
}
