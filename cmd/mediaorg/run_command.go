package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaorganizer/internal/checkpoint"
	"mediaorganizer/internal/config"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/organizer"
	"mediaorganizer/internal/pipeline"
	"mediaorganizer/internal/preflight"
	"mediaorganizer/internal/runlock"
	"mediaorganizer/internal/runstore"
	"mediaorganizer/internal/stage"
	"mediaorganizer/internal/stageexec"
)

type runOptions struct {
	Fresh     bool
	Only      []string
	Workers   int
	SkipCheck bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:         "run [library]",
		Short:       "Run the organizer pipeline over a library",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{libraryArgAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			if opts.Workers < 0 {
				return fmt.Errorf("--workers must be zero or positive")
			}
			return runOrganizer(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Fresh, "fresh", false, "Discard checkpoints of the selected stages and start over")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Run only these stages (comma separated, pipeline order is kept)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Worker pool size for hashing and classification stages")
	cmd.Flags().BoolVar(&opts.SkipCheck, "skip-check", false, "Start without running readiness checks")
	return cmd
}

func runOrganizer(ctx context.Context, out io.Writer, cfg *config.Config, opts runOptions) error {
	lock, err := runlock.Acquire(cfg.StateDir())
	if err != nil {
		return err
	}
	defer lock.Release()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     filepath.Join(cfg.LogDir(), pipeline.ReportDir),
		Pattern: pipeline.ReportPattern,
	})

	handlers := organizer.Build(cfg, organizer.DefaultDependencies(cfg, logger))
	defer organizer.CloseAll(handlers)

	only := opts.Only
	if len(only) == 0 {
		only = cfg.Pipeline.Stages
	}
	selected, err := organizer.Select(handlers, only)
	if err != nil {
		return err
	}

	colorize := shouldColorize(out)
	if !opts.SkipCheck {
		results := preflight.RunAll(ctx, cfg, selected)
		if failed := preflight.Failed(results); len(failed) > 0 {
			renderChecks(out, results, colorize)
			return fmt.Errorf("%d readiness check(s) failed; fix them or pass --skip-check", len(failed))
		}
	}

	store := checkpoint.NewStore(cfg.StateDir())
	if opts.Fresh {
		if err := resetCheckpoints(store, selected); err != nil {
			return err
		}
	}

	logger.Info("pipeline starting",
		logging.String("library", cfg.LibraryDir()),
		logging.String("stages", strings.Join(stageNames(selected), ",")),
		logging.Bool("resume", cfg.Pipeline.Resume && !opts.Fresh),
		logging.String(logging.FieldEventType, "run_start"),
	)

	// Per-item progress is drawn only on a terminal; logs carry sampled progress otherwise.
	var (
		progress   *progressLine
		onProgress func(stageexec.Progress)
	)
	if colorize {
		progress = newProgressLine(out, colorize)
		onProgress = progress.Update
	}

	orch := pipeline.New(pipeline.Options{
		Logger:      logger,
		Checkpoints: store,
		Resume:      cfg.Pipeline.Resume && !opts.Fresh,
		Retry:       stageexec.DefaultRetryPolicy(),
		BatchSize:   cfg.Tagging.BatchSize,
		Workers:     opts.Workers,
		OnProgress:  onProgress,
	})
	summary := orch.Run(ctx, selected)
	if progress != nil {
		progress.Done()
	}

	// The run context may be cancelled; the report and history still land.
	finishCtx := context.WithoutCancel(ctx)
	reportPath, err := pipeline.WriteReport(cfg.LogDir(), cfg.LibraryDir(), summary)
	if err != nil {
		logging.WarnWithContext(logger, "run report not written", "run_report_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item errors remain only in the JSON log"),
		)
		reportPath = ""
	}
	if cfg.History.Enabled {
		recordHistory(finishCtx, cfg, summary, logger)
	}

	renderSummary(out, summary, reportPath, colorize)

	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.Status == pipeline.StateAborted {
		return fmt.Errorf("run aborted at %s: %s", summary.AbortedStage, summary.AbortReason)
	}
	return nil
}

func resetCheckpoints(store *checkpoint.Store, handlers []stage.Handler) error {
	for _, h := range handlers {
		if err := store.Reset(h.Name()); err != nil {
			return err
		}
	}
	return nil
}

func recordHistory(ctx context.Context, cfg *config.Config, summary pipeline.Summary, logger *slog.Logger) {
	warn := func(msg string, err error) {
		logging.WarnWithContext(logger, msg, "history_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete "+filepath.Join(cfg.StateDir(), runstore.FileName)+" to start a fresh history"),
			logging.String(logging.FieldImpact, "run not listed by mediaorg history"),
		)
	}
	store, err := runstore.Open(ctx, cfg.StateDir())
	if err != nil {
		warn("history store unavailable", err)
		return
	}
	defer store.Close()

	if err := store.Record(ctx, cfg.LibraryDir(), summary); err != nil {
		warn("run history not recorded", err)
		return
	}
	if days := cfg.Logging.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		if removed, err := store.Prune(ctx, cutoff); err != nil {
			warn("run history not pruned", err)
		} else if removed > 0 {
			logger.Debug("run history pruned",
				logging.Int64("removed", removed),
				logging.String(logging.FieldEventType, "history_pruned"),
			)
		}
	}
}

func stageNames(handlers []stage.Handler) []string {
	names := make([]string, 0, len(handlers))
	for _, h := range handlers {
		names = append(names, h.Name())
	}
	return names
}
