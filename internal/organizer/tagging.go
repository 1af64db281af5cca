package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	mapset "github.com/deckarep/golang-set/v2"

	"mediaorganizer/internal/classify"
	"mediaorganizer/internal/config"
	"mediaorganizer/internal/deps"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/media"
	"mediaorganizer/internal/media/frames"
	"mediaorganizer/internal/scan"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/stage"
	"mediaorganizer/internal/taglog"
	"mediaorganizer/internal/tagset"
)

// FrameSampler extracts still frames from a video into dir.
type FrameSampler func(ctx context.Context, source, dir string, opts frames.Options) ([]string, error)

// tagger holds what the image and video tagging stages share: the label
// vocabulary snapshot, the classifier, and the tag log.
type tagger struct {
	base
	classifier classify.Classifier
	vocab      *tagset.Vocabulary
	labels     []string
	logFile    string
	log        *taglog.Writer
	logMode    taglog.Mode
}

func newTagger(name string, cfg *config.Config, classifier classify.Classifier, logFile string, logger *slog.Logger) tagger {
	return tagger{base: newBase(name, cfg, logger), classifier: classifier, logFile: logFile}
}

// Workers returns the classification pool size.
func (t *tagger) Workers() int { return t.cfg.Tagging.Workers }

// Resume appends to the tag log when earlier progress exists.
func (t *tagger) Resume(completed int) {
	t.logMode = taglog.Truncate
	if completed > 0 {
		t.logMode = taglog.Append
	}
}

func (t *tagger) Precondition(context.Context) (bool, string, error) {
	switch {
	case !t.cfg.Tagging.Enabled:
		return true, "tagging disabled", nil
	case t.classifier == nil:
		return true, "no classifier configured", nil
	default:
		return false, "", nil
	}
}

func (t *tagger) classifierHealth(ctx context.Context) stage.Health {
	if !t.cfg.Tagging.Enabled {
		return stage.Healthy(t.name)
	}
	if t.classifier == nil {
		return stage.Unhealthy(t.name, "no classifier configured; stage will be skipped")
	}
	return pingHealth(ctx, t.name, t.classifier)
}

// prepare loads the vocabulary, discovers files under the organized tree
// that include accepts, and opens the tag log.
func (t *tagger) prepare(ctx context.Context, include func(string) bool) ([]string, error) {
	t.resetCounts()
	sfw, _ := tagset.Paths(t.cfg.TagsDir())
	vocab, err := tagset.Load(sfw)
	if err != nil {
		return nil, err
	}
	if vocab.Len() == 0 {
		vocab.Add(tagset.DefaultSFW...)
		logging.WarnWithContext(t.logger, "tag vocabulary empty; using defaults", "tags_defaulted",
			logging.Path(sfw),
			logging.String(logging.FieldErrorHint, "run the init_tags stage to create the vocabulary"),
			logging.String(logging.FieldImpact, "files are tagged against the default vocabulary"),
		)
	}
	t.vocab = vocab
	t.labels = vocab.Tags()

	opts := t.walkOptions(t.cfg.OrganizedDir())
	opts.Include = include
	res, err := scan.Walk(ctx, opts)
	if err != nil {
		return nil, err
	}
	t.logSkips(res.Skipped)

	writer, err := taglog.OpenTagLog(t.logPath(t.logFile), t.logMode)
	if err != nil {
		return nil, err
	}
	t.log = writer
	return res.Paths(), nil
}

// record writes the tag row for item.
func (t *tagger) record(item string, tags []string) error {
	if len(tags) == 0 {
		t.count(CounterUntagged, 1)
	}
	if err := t.log.WriteTags(item, tags); err != nil {
		return err
	}
	t.logger.Debug("file tagged",
		logging.Path(item),
		logging.Int("tags", len(tags)),
		logging.String(logging.FieldEventType, "file_tagged"),
	)
	return nil
}

// keep filters labels by the confidence threshold and normalizes names.
func (t *tagger) keep(labels []classify.Label) []string {
	kept := classify.Filter(labels, t.cfg.Tagging.ConfidenceThreshold)
	names := make([]string, 0, len(kept))
	seen := make(map[string]struct{}, len(kept))
	for _, label := range kept {
		name := tagset.Normalize(label.Name)
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (t *tagger) Flush(context.Context) error {
	if t.log == nil {
		return nil
	}
	return t.log.Flush()
}

// Close releases the tag log.
func (t *tagger) Close() error {
	if t.log == nil {
		return nil
	}
	return t.log.Close()
}

// TagImages classifies organized images against the tag vocabulary, writes
// the image tag log, and extends the vocabulary with newly seen labels.
type TagImages struct {
	tagger
}

// NewTagImages constructs the tag_images stage. A nil classifier makes the stage skip.
func NewTagImages(cfg *config.Config, classifier classify.Classifier, logger *slog.Logger) *TagImages {
	return &TagImages{tagger: newTagger(StageTagImages, cfg, classifier, taglog.ImageTagsFile, logger)}
}

func (s *TagImages) HealthCheck(ctx context.Context) stage.Health {
	return s.classifierHealth(ctx)
}

func (s *TagImages) Prepare(ctx context.Context) ([]string, error) {
	return s.prepare(ctx, media.IsTaggableImage)
}

func (s *TagImages) Process(ctx context.Context, item string) error {
	labels, err := s.classifier.Classify(ctx, item, s.labels)
	if err != nil {
		return err
	}
	tags := s.keep(labels)
	if added := s.vocab.Add(tags...); len(added) > 0 {
		s.count(CounterNewTags, len(added))
		s.logger.Info("new tags discovered",
			logging.Path(item),
			logging.Any("tags", added),
			logging.String(logging.FieldEventType, "tags_discovered"),
		)
	}
	return s.record(item, tags)
}

// Finish saves the extended vocabulary and closes the tag log.
func (s *TagImages) Finish(context.Context) error {
	closeErr := s.Close()
	if s.Counters()[CounterNewTags] > 0 {
		if err := s.vocab.Save(); err != nil {
			return err
		}
	}
	return closeErr
}

// TagVideos samples frames from organized videos, classifies them in
// batches, and writes the union of kept labels to the video tag log.
type TagVideos struct {
	tagger
	sample FrameSampler
}

// NewTagVideos constructs the tag_videos stage. A nil sampler uses ffmpeg.
func NewTagVideos(cfg *config.Config, classifier classify.Classifier, sample FrameSampler, logger *slog.Logger) *TagVideos {
	if sample == nil {
		sample = frames.Sample
	}
	return &TagVideos{
		tagger: newTagger(StageTagVideos, cfg, classifier, taglog.VideoTagsFile, logger),
		sample: sample,
	}
}

func (s *TagVideos) HealthCheck(ctx context.Context) stage.Health {
	health := s.classifierHealth(ctx)
	if !health.Ready || !s.cfg.Tagging.Enabled {
		return health
	}
	for _, status := range deps.CheckBinaries([]deps.Requirement{{Name: "FFmpeg", Command: s.cfg.Tagging.FFmpegBinary}}) {
		if !status.Available {
			return stage.Unhealthy(s.name, status.Detail)
		}
	}
	return health
}

func (s *TagVideos) Prepare(ctx context.Context) ([]string, error) {
	return s.prepare(ctx, media.IsVideo)
}

func (s *TagVideos) Process(ctx context.Context, item string) error {
	dir, err := os.MkdirTemp("", "mediaorg-frames-*")
	if err != nil {
		return services.Wrap(services.ErrWriteFailed, s.name, "create frame dir", item, err)
	}
	defer os.RemoveAll(dir)

	paths, err := s.sample(ctx, item, dir, frames.Options{
		Binary:          s.cfg.Tagging.FFmpegBinary,
		IntervalSeconds: s.cfg.Tagging.FrameIntervalSeconds,
		MaxFrames:       s.cfg.Tagging.MaxVideoFrames,
	})
	if err != nil {
		return err
	}
	s.count(CounterFrames, len(paths))

	tags := mapset.NewThreadUnsafeSet[string]()
	for _, batch := range frames.Batches(paths, s.cfg.Tagging.BatchSize) {
		results, err := s.classifyBatch(ctx, batch)
		if err != nil {
			return err
		}
		for _, labels := range results {
			tags.Append(s.keep(labels)...)
		}
	}
	return s.record(item, mapset.Sorted(tags))
}

func (s *TagVideos) classifyBatch(ctx context.Context, batch []string) ([][]classify.Label, error) {
	if batcher, ok := s.classifier.(classify.BatchClassifier); ok {
		results, err := batcher.ClassifyBatch(ctx, batch, s.labels)
		if err != nil {
			return nil, err
		}
		if len(results) != len(batch) {
			return nil, services.Wrap(services.ErrExternalTool, s.name, "classify frames",
				fmt.Sprintf("expected %d results, got %d", len(batch), len(results)), nil)
		}
		return results, nil
	}
	results := make([][]classify.Label, 0, len(batch))
	for _, frame := range batch {
		labels, err := s.classifier.Classify(ctx, frame, s.labels)
		if err != nil {
			return nil, err
		}
		results = append(results, labels)
	}
	return results, nil
}

func (s *TagVideos) Finish(context.Context) error { return s.Close() }
