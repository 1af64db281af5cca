package organizer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/dedup"
	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/fingerprint"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/scan"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/taglog"
)

// FindDuplicates fingerprints every file under the library root and writes
// the duplicate-group log. Grouping is rebuilt each run, so the stage keeps
// no checkpoint.
type FindDuplicates struct {
	base
	hash      dedup.HashFunc
	collector *dedup.Collector

	mu    sync.Mutex
	order map[string]int
}

// NewFindDuplicates constructs the find_duplicates stage.
func NewFindDuplicates(cfg *config.Config, logger *slog.Logger) *FindDuplicates {
	return &FindDuplicates{base: newBase(StageFindDuplicates, cfg, logger), hash: fingerprint.File}
}

func (s *FindDuplicates) Checkpointed() bool { return false }

// Workers returns the configured hashing pool size.
func (s *FindDuplicates) Workers() int { return s.cfg.Dedup.HashWorkers }

func (s *FindDuplicates) Prepare(ctx context.Context) ([]string, error) {
	s.resetCounts()
	opts := s.walkOptions(s.cfg.LibraryDir())
	opts.MinSize = s.cfg.MinFileSizeBytes()
	res, err := scan.Walk(ctx, opts)
	if err != nil {
		return nil, err
	}
	s.logSkips(res.Skipped)

	paths := res.Paths()
	s.collector = dedup.NewCollector()
	s.mu.Lock()
	s.order = make(map[string]int, len(paths))
	for i, path := range paths {
		s.order[path] = i
	}
	s.mu.Unlock()
	return paths, nil
}

func (s *FindDuplicates) Process(_ context.Context, item string) error {
	s.mu.Lock()
	idx, ok := s.order[item]
	s.mu.Unlock()
	if !ok {
		return services.Wrap(services.ErrValidation, s.name, "hash", item+" was not discovered", nil)
	}
	digest, err := s.hash(item)
	if err != nil {
		return err
	}
	s.collector.Add(idx, item, digest)
	return nil
}

// Finish groups the collected digests and rewrites the duplicate log.
func (s *FindDuplicates) Finish(context.Context) error {
	groups := s.collector.Groups()
	duplicates := 0
	for _, g := range groups {
		duplicates += len(g.Duplicates())
	}
	s.count(CounterGroups, len(groups))
	s.count(CounterDuplicates, duplicates)

	path := s.logPath(taglog.DuplicateLogFile)
	if err := taglog.WriteDuplicateLog(path, groups); err != nil {
		return err
	}
	s.logger.Info("duplicate groups written",
		logging.String(logging.FieldEventType, "duplicates_found"),
		logging.Int("hashed", s.collector.Len()),
		logging.Int("groups", len(groups)),
		logging.Int("duplicates", duplicates),
		logging.Path(path),
	)
	return nil
}

// MoveDuplicates relocates every non-canonical member listed in the duplicate
// log into the duplicates directory. It requires the log from find_duplicates.
type MoveDuplicates struct {
	base
	hash   dedup.HashFunc
	reloc  relocator
	groups map[string]dedup.Group
}

// NewMoveDuplicates constructs the move_duplicates stage.
func NewMoveDuplicates(cfg *config.Config, logger *slog.Logger) *MoveDuplicates {
	return &MoveDuplicates{
		base:  newBase(StageMoveDuplicates, cfg, logger),
		hash:  fingerprint.File,
		reloc: relocator{stage: StageMoveDuplicates},
	}
}

func (s *MoveDuplicates) Prepare(context.Context) ([]string, error) {
	s.resetCounts()
	logPath := s.logPath(taglog.DuplicateLogFile)
	groups, err := taglog.ReadDuplicateLog(logPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSetupFailure, s.name, "read duplicate log",
				logPath+" is missing; run find_duplicates first", err)
		}
		return nil, services.Wrap(services.ErrSetupFailure, s.name, "read duplicate log", logPath, err)
	}
	if err := s.reloc.seed(s.logPath(taglog.MoveLogFile)); err != nil {
		return nil, err
	}

	s.groups = make(map[string]dedup.Group)
	var items []string
	for _, g := range groups {
		for _, path := range g.Duplicates() {
			if _, seen := s.groups[path]; seen {
				continue
			}
			s.groups[path] = g
			items = append(items, path)
		}
	}
	s.count(CounterGroups, len(groups))
	return items, nil
}

func (s *MoveDuplicates) Process(_ context.Context, item string) error {
	group := s.groups[item]
	if !s.reloc.planned(item) {
		if _, err := os.Lstat(item); errors.Is(err, fs.ErrNotExist) {
			return s.recoverMoved(item, group)
		}
	}
	dst, result, err := s.reloc.move(item, s.cfg.DuplicatesDir(), fileutil.GroupDupSuffix(group.ID))
	if err != nil {
		return err
	}
	s.logger.Info("duplicate moved",
		logging.Path(item),
		logging.String("destination", dst),
		logging.Int("group", group.ID),
		logging.Bool("cross_device", result.CrossDevice),
		logging.String(logging.FieldEventType, "duplicate_moved"),
	)
	if filepath.Base(dst) != filepath.Base(item) {
		s.logger.Debug("destination renamed to avoid collision", logging.Path(item), logging.String("destination", dst))
	}
	return nil
}

// recoverMoved settles a duplicate that left its place without a move-log
// row, as when a run is killed between the rename and the log write. While
// the canonical copy survives the item counts as done; the moved file is
// searched for among the names the planner hands out and re-logged if found.
func (s *MoveDuplicates) recoverMoved(item string, group dedup.Group) error {
	canonical := group.Canonical()
	if _, err := os.Lstat(canonical); err != nil {
		return services.Wrap(services.ErrUnreadable, s.name, "move",
			item+" is missing and so is its original "+canonical, err)
	}
	dst, found := s.findMoved(item, group)
	if found {
		if err := s.reloc.adopt(item, dst); err != nil {
			return err
		}
	}
	s.logger.Info("duplicate already moved",
		logging.Path(item),
		logging.String("destination", dst),
		logging.Bool("relogged", found),
		logging.Int("group", group.ID),
		logging.String(logging.FieldEventType, "duplicate_recovered"),
	)
	return services.Wrap(services.ErrAlreadyProcessed, s.name, "move", item+" no longer at its source", nil)
}

func (s *MoveDuplicates) findMoved(item string, group dedup.Group) (string, bool) {
	dir := s.cfg.DuplicatesDir()
	name := filepath.Base(item)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	naming := fileutil.GroupDupSuffix(group.ID)

	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		if _, err := os.Lstat(candidate); err != nil {
			if n > 1 {
				return "", false
			}
		} else if _, owned := s.reloc.sourceOf(candidate); !owned {
			if digest, err := s.hash(candidate); err == nil && digest == group.Digest {
				return candidate, true
			}
		}
		candidate = filepath.Join(dir, naming(stem, ext, n))
	}
}

func (s *MoveDuplicates) Flush(context.Context) error { return s.reloc.flush() }

func (s *MoveDuplicates) Finish(context.Context) error { return s.reloc.close() }

// Close releases the move log when the stage stopped before Finish.
func (s *MoveDuplicates) Close() error { return s.reloc.close() }
