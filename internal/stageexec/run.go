package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"mediaorganizer/internal/checkpoint"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/stage"
)

// DefaultBatchSize is the number of items between checkpoint saves.
const DefaultBatchSize = 2

// Outcome is the final state of one item.
type Outcome string

const (
	OutcomeProcessed    Outcome = "processed"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeCheckpointed Outcome = "checkpointed"
	OutcomeFailed       Outcome = "failed"
)

// CounterCheckpointed counts items skipped because the checkpoint had them.
const CounterCheckpointed = "checkpointed"

// Progress is reported once per item.
type Progress struct {
	Stage    string
	Index    int
	Total    int
	Path     string
	Outcome  Outcome
	Attempts int
	Err      error
}

// Options controls a stage run.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
	// Checkpoints persists completed items; nil disables checkpointing.
	Checkpoints *checkpoint.Store
	// Resume loads the existing checkpoint and skips its items.
	Resume    bool
	Retry     RetryPolicy
	BatchSize int
	// Workers > 1 processes items on a bounded pool.
	Workers     int
	OnProgress  func(Progress)
	OnItemError func(path string, err error)
}

type runner struct {
	opts      Options
	name      string
	logger    *slog.Logger
	sampler   *logging.ProgressSampler
	store     *checkpoint.Store
	batchSize int

	mu        sync.Mutex
	result    stage.Result
	completed checkpoint.Set
	done      int
	sinceSave int
}

// Run prepares the handler, processes every item, and finishes the stage.
// Item failures are recorded in the result. The returned error is non-nil only
// when the stage itself failed: Prepare or Finish errors, checkpoint or flush
// write failures, a fatal item error, or cancellation. The result is valid in
// every case.
func Run(ctx context.Context, opts Options) (stage.Result, error) {
	if opts.Handler == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, "", "run stage", "stage handler unavailable", nil)
	}
	name := opts.Handler.Name()
	start := time.Now()

	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	r := &runner{
		opts:      opts,
		name:      name,
		logger:    logger,
		sampler:   logging.NewProgressSampler(10),
		batchSize: opts.BatchSize,
		result:    stage.Result{Stage: name},
	}
	if r.batchSize <= 0 {
		r.batchSize = DefaultBatchSize
	}
	if stage.UsesCheckpoint(opts.Handler) {
		r.store = opts.Checkpoints
	}

	err := r.run(stageCtx)
	r.result.Duration = time.Since(start)
	if counting, ok := opts.Handler.(stage.Counting); ok {
		for key, value := range counting.Counters() {
			r.result.AddCounter(key, value)
		}
	}
	if err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Int("processed", r.result.Processed),
			logging.Int("skipped", r.result.Skipped),
			logging.Int("failed", r.result.Failed),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, failureHint(err)),
		)
		return r.result, err
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("expected", r.result.Expected),
		logging.Int("processed", r.result.Processed),
		logging.Int("skipped", r.result.Skipped),
		logging.Int("failed", r.result.Failed),
		logging.Duration("duration", r.result.Duration),
	)
	return r.result, nil
}

func (r *runner) run(ctx context.Context) error {
	r.completed = checkpoint.NewSet()
	if r.store != nil && r.opts.Resume {
		loaded, err := r.store.Load(r.name)
		if err != nil {
			return err
		}
		r.completed = loaded
	}
	if resumable, ok := r.opts.Handler.(stage.Resumable); ok {
		resumable.Resume(r.completed.Cardinality())
	}

	items, err := r.opts.Handler.Prepare(ctx)
	if err != nil {
		return asStageError(services.ErrSetupFailure, r.name, "prepare", err)
	}
	r.result.Expected = len(items)

	r.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("items", len(items)),
		logging.Int("checkpointed", r.completed.Cardinality()),
		logging.Int("workers", max(r.opts.Workers, 1)),
	)

	var loopErr error
	if r.opts.Workers > 1 {
		loopErr = r.processPooled(ctx, items)
	} else {
		loopErr = r.processSequential(ctx, items)
	}

	// Persist progress even when the loop stopped early so a restart resumes here.
	if saveErr := r.save(ctx); saveErr != nil {
		return errors.Join(loopErr, saveErr)
	}
	if loopErr != nil {
		return loopErr
	}

	if err := r.opts.Handler.Finish(ctx); err != nil {
		return asStageError(services.ErrWriteFailed, r.name, "finish", err)
	}
	return nil
}

func (r *runner) processSequential(ctx context.Context, items []string) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.processItem(ctx, item, len(items)); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) processPooled(ctx context.Context, items []string) error {
	p := pool.New().WithMaxGoroutines(r.opts.Workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.processItem(ctx, item, len(items))
		})
	}
	err := p.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// processItem returns an error only when the stage must stop.
func (r *runner) processItem(ctx context.Context, item string, total int) error {
	if r.isCompleted(item) {
		r.finishItem(ctx, Progress{Path: item, Total: total, Outcome: OutcomeCheckpointed}, false)
		return nil
	}

	itemCtx := services.WithItemPath(ctx, item)
	history, err := r.opts.Retry.Do(itemCtx, func(ctx context.Context, attempt int) error {
		err := r.opts.Handler.Process(ctx, item)
		if err != nil && !errors.Is(err, services.ErrAlreadyProcessed) {
			r.logger.Debug("item attempt failed",
				logging.Path(item),
				logging.Int(logging.FieldAttempt, attempt),
				logging.String(logging.FieldEventType, "item_attempt_failed"),
				logging.Error(err),
			)
		}
		return err
	})
	attempts := max(len(history), 1)
	if err == nil && len(history) > 0 {
		attempts = len(history) + 1
	}

	progress := Progress{Path: item, Total: total, Attempts: attempts}
	switch {
	case err == nil:
		progress.Outcome = OutcomeProcessed
		r.finishItem(ctx, progress, true)
		return nil
	case errors.Is(err, services.ErrAlreadyProcessed):
		progress.Outcome = OutcomeSkipped
		r.logger.Info("item already processed",
			logging.Path(item),
			logging.String(logging.FieldEventType, "item_already_processed"),
			logging.String("detail", err.Error()),
		)
		r.finishItem(ctx, progress, true)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case services.IsFatal(err):
		return asStageError(services.ErrWriteFailed, r.name, "process "+item, err)
	default:
		progress.Outcome = OutcomeFailed
		progress.Err = err
		logging.ErrorWithContext(r.logger, "item failed", "item_failed",
			logging.Path(item),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the file; it will be retried on the next run"),
		)
		if r.opts.OnItemError != nil {
			r.opts.OnItemError(item, err)
		}
		r.finishItem(ctx, progress, false)
		return nil
	}
}

func (r *runner) isCompleted(item string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed.Contains(item)
}

// finishItem records the outcome, reports progress, and saves the checkpoint
// at batch boundaries.
func (r *runner) finishItem(ctx context.Context, progress Progress, markDone bool) {
	r.mu.Lock()
	switch progress.Outcome {
	case OutcomeProcessed:
		r.result.Processed++
	case OutcomeSkipped:
		r.result.Skipped++
	case OutcomeCheckpointed:
		r.result.Skipped++
		r.result.AddCounter(CounterCheckpointed, 1)
	case OutcomeFailed:
		r.result.Failed++
		r.result.Errors = append(r.result.Errors, stage.ItemError{Path: progress.Path, Message: progress.Err.Error()})
	}
	if markDone {
		r.completed.Add(progress.Path)
		r.sinceSave++
	}
	r.done++
	progress.Stage = r.name
	progress.Index = r.done
	dueSave := r.sinceSave >= r.batchSize
	r.mu.Unlock()

	if r.opts.OnProgress != nil {
		r.opts.OnProgress(progress)
	}
	r.logProgress(progress)

	if dueSave {
		if err := r.save(ctx); err != nil {
			// The final save reports the failure; keep processing until then.
			logging.WarnWithContext(r.logger, "batch checkpoint save failed", "checkpoint_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "progress since the last save may be redone after a restart"),
			)
		}
	}
}

func (r *runner) logProgress(p Progress) {
	r.mu.Lock()
	emit := r.sampler.ShouldLogCount(p.Index, p.Total, r.name)
	r.mu.Unlock()
	if !emit && p.Index != p.Total {
		return
	}
	r.logger.Info("stage progress",
		logging.String(logging.FieldEventType, "stage_progress"),
		logging.Int("done", p.Index),
		logging.Int("total", p.Total),
	)
}

// save flushes the handler and overwrites the checkpoint with the union of
// loaded and completed items.
func (r *runner) save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if flusher, ok := r.opts.Handler.(stage.Flusher); ok {
		if err := flusher.Flush(context.WithoutCancel(ctx)); err != nil {
			return asStageError(services.ErrWriteFailed, r.name, "flush", err)
		}
	}
	if r.store == nil {
		r.sinceSave = 0
		return nil
	}
	if err := r.store.Save(r.name, r.completed); err != nil {
		return err
	}
	r.sinceSave = 0
	return nil
}

// asStageError keeps an existing marker or tags err with fallback.
func asStageError(fallback error, stageName, op string, err error) error {
	for _, marker := range []error{
		services.ErrSetupFailure, services.ErrWriteFailed, services.ErrConfiguration,
		context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(fallback, stageName, op, "", err)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrSetupFailure):
		return "check that the stage's input directory and upstream outputs exist"
	case errors.Is(err, services.ErrWriteFailed):
		return "check free space and permissions on the log and checkpoint directories"
	case errors.Is(err, context.Canceled):
		return "run again to resume from the last checkpoint"
	default:
		return fmt.Sprintf("see %s for details", logging.LogFileName)
	}
}
