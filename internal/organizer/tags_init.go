package organizer

import (
	"context"
	"log/slog"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/tagset"
)

// InitTags merges the default vocabularies into the tag files. Both files are
// rewritten sorted on every run.
type InitTags struct {
	base
	defaults map[string][]string
}

// NewInitTags constructs the init_tags stage.
func NewInitTags(cfg *config.Config, logger *slog.Logger) *InitTags {
	sfw, nsfw := tagset.Paths(cfg.TagsDir())
	return &InitTags{
		base: newBase(StageInitTags, cfg, logger),
		defaults: map[string][]string{
			sfw:  tagset.DefaultSFW,
			nsfw: tagset.DefaultNSFW,
		},
	}
}

// Checkpointed reports false: merging is idempotent and always repeated.
func (s *InitTags) Checkpointed() bool { return false }

func (s *InitTags) Prepare(context.Context) ([]string, error) {
	s.resetCounts()
	sfw, nsfw := tagset.Paths(s.cfg.TagsDir())
	return []string{sfw, nsfw}, nil
}

func (s *InitTags) Process(_ context.Context, item string) error {
	vocab, discarded, err := tagset.Init(item, s.defaults[item])
	if err != nil {
		return err
	}
	if discarded {
		s.count(CounterDiscarded, 1)
		logging.WarnWithContext(s.logger, "malformed tag file replaced", "tag_file_replaced",
			logging.Path(item),
			logging.String(logging.FieldErrorHint, "custom tags in the old file were lost; re-add them"),
			logging.String(logging.FieldImpact, "vocabulary reset to defaults"),
		)
	}
	s.logger.Info("tag vocabulary ready",
		logging.Path(item),
		logging.Int("tags", vocab.Len()),
		logging.String(logging.FieldEventType, "tags_initialized"),
	)
	return nil
}
