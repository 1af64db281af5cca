package organizer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"mediaorganizer/internal/classify"
	"mediaorganizer/internal/config"
	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/media"
	"mediaorganizer/internal/scan"
	"mediaorganizer/internal/stage"
	"mediaorganizer/internal/taglog"
)

// healthPinger is implemented by HTTP-backed classifiers.
type healthPinger interface {
	HealthCheck(ctx context.Context) error
}

// DetectNSFW scores organized images and moves those above the unsafe
// threshold into Tagged/NSFW. Every scored image gets a row in the NSFW log.
type DetectNSFW struct {
	base
	scorer  classify.NSFWScorer
	reloc   relocator
	log     *taglog.Writer
	logMode taglog.Mode
	// stray maps images found in the NSFW directory without a log row to
	// the path they were moved from.
	stray   map[string]string
}

// NewDetectNSFW constructs the detect_nsfw stage. A nil scorer makes the stage skip.
func NewDetectNSFW(cfg *config.Config, scorer classify.NSFWScorer, logger *slog.Logger) *DetectNSFW {
	return &DetectNSFW{
		base:   newBase(StageDetectNSFW, cfg, logger),
		scorer: scorer,
		reloc:  relocator{stage: StageDetectNSFW},
	}
}

// Workers returns the classification pool size.
func (s *DetectNSFW) Workers() int { return s.cfg.Tagging.Workers }

// Resume appends to the NSFW log when earlier progress exists.
func (s *DetectNSFW) Resume(completed int) {
	s.logMode = taglog.Truncate
	if completed > 0 {
		s.logMode = taglog.Append
	}
}

func (s *DetectNSFW) Precondition(context.Context) (bool, string, error) {
	if s.scorer == nil {
		return true, "no NSFW classifier configured", nil
	}
	return false, "", nil
}

func (s *DetectNSFW) HealthCheck(ctx context.Context) stage.Health {
	if s.scorer == nil {
		return stage.Unhealthy(s.name, "no NSFW classifier configured; stage will be skipped")
	}
	return pingHealth(ctx, s.name, s.scorer)
}

func (s *DetectNSFW) Prepare(ctx context.Context) ([]string, error) {
	s.resetCounts()
	opts := s.walkOptions(s.cfg.OrganizedDir())
	opts.Include = media.IsTaggableImage
	res, err := scan.Walk(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.logSkips(res.Skipped)
	if err := s.reloc.seed(s.logPath(taglog.MoveLogFile)); err != nil {
		return nil, err
	}
	stray, err := s.strayImages(ctx)
	if err != nil {
		return nil, err
	}
	writer, err := taglog.OpenNSFWLog(s.logPath(taglog.NSFWLogFile), s.logMode)
	if err != nil {
		return nil, err
	}
	s.log = writer

	s.stray = stray
	return append(res.Paths(), slices.Sorted(maps.Keys(stray))...), nil
}

// strayImages lists images already in the NSFW directory that the log does
// not account for, such as a file moved just before the process was killed.
// A truncated log accounts for nothing, so every such image is re-recorded.
func (s *DetectNSFW) strayImages(ctx context.Context) (map[string]string, error) {
	logged := make(map[string]struct{})
	if s.logMode == taglog.Append {
		rows, err := taglog.ReadNSFWLog(s.logPath(taglog.NSFWLogFile))
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.NewLocation != "" {
				logged[row.NewLocation] = struct{}{}
			}
		}
	}

	stray := make(map[string]string)
	if _, err := os.Stat(s.cfg.NSFWDir()); errors.Is(err, fs.ErrNotExist) {
		return stray, nil
	}
	opts := s.walkOptions(s.cfg.NSFWDir())
	opts.Include = media.IsTaggableImage
	res, err := scan.Walk(ctx, opts)
	if err != nil {
		return nil, err
	}
	for _, path := range res.Paths() {
		if _, ok := logged[path]; ok {
			continue
		}
		origin, ok := s.reloc.sourceOf(path)
		if !ok {
			origin = path
		}
		stray[path] = origin
	}
	return stray, nil
}

func (s *DetectNSFW) Process(ctx context.Context, item string) error {
	score, err := s.scorer.UnsafeScore(ctx, item)
	if err != nil {
		return err
	}
	if origin, ok := s.stray[item]; ok {
		s.logger.Info("unlogged NSFW image recorded",
			logging.Path(item),
			logging.String("origin", origin),
			logging.Float64("score", score),
			logging.String(logging.FieldEventType, "nsfw_relogged"),
		)
		return s.record(taglog.NSFWRow{File: origin, Classification: taglog.ClassUnsafe, UnsafeScore: score, NewLocation: item})
	}
	row := taglog.NSFWRow{File: item, Classification: taglog.ClassSafe, UnsafeScore: score}
	if score <= s.cfg.NSFW.UnsafeThreshold {
		return s.log.WriteNSFW(row)
	}

	dst, _, err := s.reloc.move(item, s.cfg.NSFWDir(), fileutil.DupSuffix)
	if err != nil {
		return err
	}
	row.Classification = taglog.ClassUnsafe
	row.NewLocation = dst
	s.count(CounterUnsafe, 1)
	s.logger.Info("unsafe image moved",
		logging.Path(item),
		logging.String("destination", dst),
		logging.Float64("score", score),
		logging.String(logging.FieldEventType, "nsfw_moved"),
	)
	// The moved image is no longer under the organized tree, so its row must
	// be on disk before the item is reported done.
	return s.record(row)
}

func (s *DetectNSFW) record(row taglog.NSFWRow) error {
	if err := s.log.WriteNSFW(row); err != nil {
		return err
	}
	return s.log.Flush()
}

func (s *DetectNSFW) Flush(context.Context) error {
	if err := s.reloc.flush(); err != nil {
		return err
	}
	if s.log == nil {
		return nil
	}
	return s.log.Flush()
}

func (s *DetectNSFW) Finish(context.Context) error { return s.Close() }

// Close releases the NSFW and move logs.
func (s *DetectNSFW) Close() error {
	moveErr := s.reloc.close()
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			return err
		}
	}
	return moveErr
}

func pingHealth(ctx context.Context, name string, target any) stage.Health {
	pinger, ok := target.(healthPinger)
	if !ok {
		return stage.Healthy(name)
	}
	if err := pinger.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, strings.TrimSpace(err.Error()))
	}
	return stage.Healthy(name)
}
