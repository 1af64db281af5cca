package organizer

import (
	"context"
	"log/slog"
	"sync"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/index"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/taglog"
)

// BuildIndex merges the tag logs and the NSFW log into the JSONL index. It is
// skipped while the index is newer than every input log.
type BuildIndex struct {
	base
	date index.DateFunc

	mu      sync.Mutex
	inputs  index.Inputs
	entries map[string]index.Entry
}

// NewBuildIndex constructs the build_index stage.
func NewBuildIndex(cfg *config.Config, logger *slog.Logger) *BuildIndex {
	return &BuildIndex{base: newBase(StageBuildIndex, cfg, logger), date: index.MtimeDate}
}

func (s *BuildIndex) Checkpointed() bool { return false }

func (s *BuildIndex) inputPaths() []string {
	return []string{
		s.logPath(taglog.ImageTagsFile),
		s.logPath(taglog.VideoTagsFile),
		s.logPath(taglog.NSFWLogFile),
	}
}

func (s *BuildIndex) Precondition(context.Context) (bool, string, error) {
	current, err := index.UpToDate(s.logPath(index.FileName), s.inputPaths()...)
	if err != nil {
		return false, "", err
	}
	if current {
		return true, "index is newer than every tag log", nil
	}
	return false, "", nil
}

func (s *BuildIndex) Prepare(context.Context) ([]string, error) {
	s.resetCounts()
	paths := s.inputPaths()
	inputs, err := index.ReadInputs(paths[0], paths[1], paths[2])
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.inputs = inputs
	s.entries = make(map[string]index.Entry)
	s.mu.Unlock()
	return inputs.Files(), nil
}

func (s *BuildIndex) Process(_ context.Context, item string) error {
	entry := s.inputs.Entry(item, s.date)
	s.mu.Lock()
	s.entries[item] = entry
	s.mu.Unlock()
	return nil
}

// Finish writes the entries in path order.
func (s *BuildIndex) Finish(context.Context) error {
	s.mu.Lock()
	entries := make([]index.Entry, 0, len(s.entries))
	for _, path := range s.inputs.Files() {
		if entry, ok := s.entries[path]; ok {
			entries = append(entries, entry)
		}
	}
	s.mu.Unlock()

	path := s.logPath(index.FileName)
	if err := index.Write(path, entries); err != nil {
		return err
	}
	s.logger.Info("media index written",
		logging.Path(path),
		logging.Int("entries", len(entries)),
		logging.String(logging.FieldEventType, "index_written"),
	)
	return nil
}
