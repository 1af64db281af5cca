package organizer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mediaorganizer/internal/classify"
	"mediaorganizer/internal/config"
	"mediaorganizer/internal/deps"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/mediadate"
	"mediaorganizer/internal/stage"
)

// Names lists every stage in pipeline order.
func Names() []string {
	return []string{
		StageInitTags,
		StageFindDuplicates,
		StageMoveDuplicates,
		StageOrganizeByDate,
		StageDetectNSFW,
		StageTagImages,
		StageTagVideos,
		StageBuildIndex,
	}
}

// Dependencies are the external collaborators of the stages. Nil classifiers
// make the stages that need them skip.
type Dependencies struct {
	Logger     *slog.Logger
	Classifier classify.Classifier
	NSFW       classify.NSFWScorer
	Dates      DateResolver
	Frames     FrameSampler
}

// DefaultDependencies wires the HTTP classifiers, the EXIF/ffprobe date
// resolver, and ffmpeg frame sampling from cfg.
func DefaultDependencies(cfg *config.Config, logger *slog.Logger) Dependencies {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := Dependencies{Logger: logger}
	if url := strings.TrimSpace(cfg.Tagging.ClassifierURL); url != "" {
		d.Classifier = classify.NewClient(classify.Config{URL: url, TimeoutSeconds: cfg.Tagging.TimeoutSeconds})
	}
	if url := strings.TrimSpace(cfg.NSFW.ClassifierURL); url != "" {
		d.NSFW = classify.NewClient(classify.Config{URL: url, TimeoutSeconds: cfg.Tagging.TimeoutSeconds})
	}
	ffprobe := deps.ResolveFFprobe(cfg.Tagging.FFmpegBinary, cfg.Dates.FFprobeBinary)
	d.Dates = mediadate.NewResolver(ffprobe, mediadate.WithLogger(logging.NewComponentLogger(logger, "dates")))
	return d
}

// Build returns every stage handler in pipeline order.
func Build(cfg *config.Config, d Dependencies) []stage.Handler {
	logger := d.Logger
	return []stage.Handler{
		NewInitTags(cfg, logger),
		NewFindDuplicates(cfg, logger),
		NewMoveDuplicates(cfg, logger),
		NewOrganizeByDate(cfg, d.Dates, logger),
		NewDetectNSFW(cfg, d.NSFW, logger),
		NewTagImages(cfg, d.Classifier, logger),
		NewTagVideos(cfg, d.Classifier, d.Frames, logger),
		NewBuildIndex(cfg, logger),
	}
}

// Select keeps the handlers named in only, preserving pipeline order. An
// empty selection keeps every handler; an unknown name is an error.
func Select(handlers []stage.Handler, only []string) ([]stage.Handler, error) {
	if len(only) == 0 {
		return handlers, nil
	}
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.TrimSpace(name)] = true
	}
	var out []stage.Handler
	for _, h := range handlers {
		if wanted[h.Name()] {
			out = append(out, h)
			delete(wanted, h.Name())
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for _, name := range only {
			if wanted[strings.TrimSpace(name)] {
				unknown = append(unknown, strings.TrimSpace(name))
			}
		}
		return nil, fmt.Errorf("unknown stage %s (known: %s)", strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}
	return out, nil
}

// CloseAll releases files held by handlers that stopped before Finish.
func CloseAll(handlers []stage.Handler) error {
	var firstErr error
	for _, h := range handlers {
		closer, ok := h.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
