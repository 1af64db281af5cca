package scan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"

	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/services"
)

// Skip reasons reported in Result.Skipped.
const (
	ReasonSymlink    = "symlink"
	ReasonBelowSize  = "below_min_size"
	ReasonUnreadable = "unreadable"
)

// FileRecord is one discovered regular file. Path is absolute and serves as
// the item identity for checkpoints and logs.
type FileRecord struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Skip records a path left out of the walk and why.
type Skip struct {
	Path   string
	Reason string
}

// Options controls a walk.
type Options struct {
	Root string
	// IgnoreLines are gitignore-style patterns relative to Root, e.g. "/Duplicates/".
	IgnoreLines []string
	// IgnoreFile names a gitignore-style file inside Root whose lines extend IgnoreLines.
	IgnoreFile string
	// Exclude holds doublestar globs matched against the slash-separated relative path.
	Exclude []string
	// MinSize drops files smaller than this many bytes.
	MinSize int64
	// Include, when set, keeps only files it accepts. Rejected files are not reported.
	Include func(path string) bool
	Logger  *slog.Logger
}

// Result is the outcome of a walk.
type Result struct {
	Files   []FileRecord
	Skipped []Skip
}

// Paths returns the discovered paths in discovery order.
func (r Result) Paths() []string {
	out := make([]string, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Path
	}
	return out
}

// Walk discovers files under opts.Root in lexical order. A missing or
// unreadable root wraps services.ErrSetupFailure.
func Walk(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return Result{}, services.Wrap(services.ErrSetupFailure, "scan", "resolve root", "root directory not configured", nil)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Result{}, services.Wrap(services.ErrSetupFailure, "scan", "resolve root", opts.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, services.Wrap(services.ErrSetupFailure, "scan", "open root", root, err)
	}
	if !info.IsDir() {
		return Result{}, services.Wrap(services.ErrSetupFailure, "scan", "open root", root, fmt.Errorf("not a directory"))
	}

	matcher := NewMatcher(root, opts.IgnoreLines, opts.IgnoreFile, opts.Exclude, logger)

	var result Result
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			result.Skipped = append(result.Skipped, Skip{Path: path, Reason: ReasonUnreadable})
			logging.WarnWithContext(logger, "path unreadable during scan", "scan_unreadable",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the library tree"),
				logging.String(logging.FieldImpact, "path excluded from this stage"),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		if d.IsDir() {
			if matcher.Ignored(path, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Ignored(path, false) {
			return nil
		}
		if opts.Include != nil && !opts.Include(path) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			result.Skipped = append(result.Skipped, Skip{Path: path, Reason: ReasonSymlink})
			logger.Debug("symlink skipped", logging.Path(path), logging.String(logging.FieldEventType, "scan_symlink_skipped"))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Path: path, Reason: ReasonUnreadable})
			return nil
		}
		if fi.Size() < opts.MinSize {
			result.Skipped = append(result.Skipped, Skip{Path: path, Reason: ReasonBelowSize})
			return nil
		}
		result.Files = append(result.Files, FileRecord{Path: path, Size: fi.Size(), ModTime: fi.ModTime()})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return result, walkErr
		}
		return result, services.Wrap(services.ErrSetupFailure, "scan", "walk", root, walkErr)
	}
	return result, nil
}

// Matcher decides whether a path under a root is pruned.
type Matcher struct {
	root    string
	ignore  *gitignore.GitIgnore
	exclude []string
}

// NewMatcher compiles ignore lines, the optional ignore file inside root, and
// exclude globs. Invalid globs never match.
func NewMatcher(root string, lines []string, ignoreFile string, exclude []string, logger *slog.Logger) *Matcher {
	all := append([]string(nil), lines...)
	if name := strings.TrimSpace(ignoreFile); name != "" {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, name)
		}
		extra, err := readIgnoreFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) && logger != nil {
			logger.Warn("ignore file unreadable; using defaults",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "ignore_file_unreadable"),
			)
		}
		if len(extra) > 0 && logger != nil {
			logger.Debug("ignore file loaded", logging.Path(path), logging.Int("rules", len(extra)))
		}
		all = append(all, extra...)
	}
	return &Matcher{
		root:    root,
		ignore:  gitignore.CompileIgnoreLines(all...),
		exclude: append([]string(nil), exclude...),
	}
}

// Ignored reports whether path is pruned. Directories match with a trailing slash.
func (m *Matcher) Ignored(path string, isDir bool) bool {
	if m == nil {
		return false
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	candidate := rel
	if isDir {
		candidate += "/"
	}
	if m.ignore != nil && m.ignore.MatchesPath(candidate) {
		return true
	}
	for _, pattern := range m.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// RootedLine converts a directory under root into an anchored ignore line such
// as "/Duplicates/". Directories outside root yield "".
func RootedLine(root, dir string) string {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel) + "/"
}
