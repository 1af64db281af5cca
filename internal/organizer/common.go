package organizer

import (
	"context"
	"log/slog"
	"maps"
	"path/filepath"
	"sync"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/scan"
	"mediaorganizer/internal/taglog"
)

// Stage names in pipeline order.
const (
	StageInitTags       = "init_tags"
	StageFindDuplicates = "find_duplicates"
	StageMoveDuplicates = "move_duplicates"
	StageOrganizeByDate = "organize_by_date"
	StageDetectNSFW     = "detect_nsfw"
	StageTagImages      = "tag_images"
	StageTagVideos      = "tag_videos"
	StageBuildIndex     = "build_index"
)

// Counter keys reported in stage results.
const (
	CounterGroups       = "groups"
	CounterDuplicates   = "duplicates"
	CounterSymlinks     = "symlinks_skipped"
	CounterDateFallback = "date_fallback"
	CounterNonMedia     = "non_media"
	CounterUnsafe       = "unsafe"
	CounterNewTags      = "new_tags"
	CounterUntagged     = "untagged"
	CounterFrames       = "frames"
	CounterDiscarded    = "discarded"
)

// unmanagedDirs are library-root directories never treated as media.
var unmanagedDirs = []string{"venv", "scripts"}

// base carries the pieces every stage handler shares.
type base struct {
	name   string
	cfg    *config.Config
	logger *slog.Logger
	tally  *tally
}

type tally struct {
	mu     sync.Mutex
	counts map[string]int
}

func newBase(name string, cfg *config.Config, logger *slog.Logger) base {
	if logger == nil {
		logger = logging.NewNop()
	}
	return base{name: name, cfg: cfg, logger: logging.NewComponentLogger(logger, "organizer"), tally: &tally{}}
}

func (b *base) Name() string { return b.name }

func (b *base) SetLogger(logger *slog.Logger) {
	if logger != nil {
		b.logger = logging.NewComponentLogger(logger, "organizer")
	}
}

func (b *base) Finish(context.Context) error { return nil }

// Counters returns a copy of the stage tallies.
func (b *base) Counters() map[string]int {
	b.tally.mu.Lock()
	defer b.tally.mu.Unlock()
	return maps.Clone(b.tally.counts)
}

func (b *base) count(name string, delta int) {
	b.tally.mu.Lock()
	defer b.tally.mu.Unlock()
	if b.tally.counts == nil {
		b.tally.counts = make(map[string]int)
	}
	b.tally.counts[name] += delta
}

func (b *base) resetCounts() {
	b.tally.mu.Lock()
	defer b.tally.mu.Unlock()
	b.tally.counts = nil
}

// walkOptions builds scan options for root that skip every managed directory
// and the configured ignore rules.
func (b *base) walkOptions(root string) scan.Options {
	managed := []string{
		b.cfg.OrganizedDir(),
		b.cfg.DuplicatesDir(),
		b.cfg.TaggedDir(),
		b.cfg.LogDir(),
		b.cfg.StateDir(),
		b.cfg.TagsDir(),
	}
	for _, dir := range unmanagedDirs {
		managed = append(managed, filepath.Join(b.cfg.LibraryDir(), dir))
	}
	var lines []string
	for _, dir := range managed {
		if line := scan.RootedLine(root, dir); line != "" {
			lines = append(lines, line)
		}
	}
	return scan.Options{
		Root:        root,
		IgnoreLines: lines,
		IgnoreFile:  b.cfg.Scan.IgnoreFile,
		Exclude:     b.cfg.Scan.Exclude,
		Logger:      b.logger,
	}
}

func (b *base) logPath(name string) string {
	return filepath.Join(b.cfg.LogDir(), name)
}

// logSkips reports walk skips at debug level and counts symlinks.
func (b *base) logSkips(skips []scan.Skip) {
	for _, skip := range skips {
		if skip.Reason == scan.ReasonSymlink {
			b.count(CounterSymlinks, 1)
		}
		b.logger.Debug("path skipped",
			logging.Path(skip.Path),
			logging.String("reason", skip.Reason),
			logging.String(logging.FieldEventType, "scan_skip"),
		)
	}
}

// relocator moves files through a Planner seeded from the move log and
// records each completed move.
type relocator struct {
	stage   string
	planner *fileutil.Planner
	log     *taglog.Writer
}

// seed opens the move log and remembers destinations chosen by earlier runs
// of the same stage.
func (r *relocator) seed(path string) error {
	rows, err := taglog.ReadMoveLog(path)
	if err != nil {
		return err
	}
	r.planner = fileutil.NewPlanner()
	for _, row := range rows {
		if row.Stage == r.stage {
			r.planner.Seed(row.Source, row.Destination)
		}
	}
	writer, err := taglog.OpenMoveLog(path)
	if err != nil {
		return err
	}
	r.log = writer
	return nil
}

// move relocates src into dir and logs the move. The returned destination is
// valid whenever the error is nil or ErrAlreadyProcessed. A move is reported
// only after its log row is synced.
func (r *relocator) move(src, dir string, naming fileutil.Naming) (string, fileutil.MoveResult, error) {
	dst := r.planner.Plan(src, dir, naming)
	result := fileutil.Move(src, dst)
	if result.Outcome == fileutil.Moved {
		if err := r.record(src, dst); err != nil {
			return dst, result, err
		}
	}
	return dst, result, result.AsError()
}

// planned reports whether src already has a destination from this or an
// earlier run.
func (r *relocator) planned(src string) bool {
	_, ok := r.planner.Planned(src)
	return ok
}

// sourceOf returns the origin recorded for a moved file.
func (r *relocator) sourceOf(dst string) (string, bool) {
	return r.planner.Owner(dst)
}

// adopt records a move that happened without reaching the log.
func (r *relocator) adopt(src, dst string) error {
	r.planner.Seed(src, dst)
	return r.record(src, dst)
}

func (r *relocator) record(src, dst string) error {
	if err := r.log.WriteMove(taglog.MoveRow{Source: src, Destination: dst, Stage: r.stage}); err != nil {
		return err
	}
	return r.log.Flush()
}

func (r *relocator) flush() error {
	if r.log == nil {
		return nil
	}
	return r.log.Flush()
}

func (r *relocator) close() error {
	if r.log == nil {
		return nil
	}
	return r.log.Close()
}
