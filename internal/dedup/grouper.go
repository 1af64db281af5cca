package dedup

import (
	"context"
	"log/slog"
	"os"

	"github.com/sourcegraph/conc/pool"

	"mediaorganizer/internal/fingerprint"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/scan"
)

// HashFunc computes a digest for path.
type HashFunc func(path string) (fingerprint.Digest, error)

// Options tunes GroupPaths.
type Options struct {
	// Workers bounds concurrent hashing. Values below 2 hash sequentially.
	Workers int
	Hash    HashFunc
	Logger  *slog.Logger
}

// Failure is a path that could not be hashed.
type Failure struct {
	Path string
	Err  error
}

// Result is the outcome of grouping.
type Result struct {
	Groups   []Group
	Hashed   int
	Skipped  []scan.Skip
	Failures []Failure
}

// DuplicateCount returns the number of non-canonical members across groups.
func (r Result) DuplicateCount() int {
	total := 0
	for _, g := range r.Groups {
		total += len(g.Duplicates())
	}
	return total
}

// GroupPaths fingerprints paths in the order given and groups identical
// content. Symlinks are reported as skipped. Unreadable files are collected
// in Failures and never abort the grouping; only context cancellation does.
func GroupPaths(ctx context.Context, paths []string, opts Options) (Result, error) {
	hash := opts.Hash
	if hash == nil {
		hash = fingerprint.File
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	collector := NewCollector()
	failures := make([]*Failure, len(paths))
	skipped := make([]*scan.Skip, len(paths))

	hashOne := func(idx int, path string) {
		if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
			skipped[idx] = &scan.Skip{Path: path, Reason: scan.ReasonSymlink}
			logger.Debug("symlink skipped", logging.Path(path), logging.String(logging.FieldEventType, "dedup_symlink_skipped"))
			return
		}
		digest, err := hash(path)
		if err != nil {
			failures[idx] = &Failure{Path: path, Err: err}
			logging.WarnWithContext(logger, "fingerprint failed", "fingerprint_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the file is readable"),
				logging.String(logging.FieldImpact, "file excluded from duplicate detection"),
			)
			return
		}
		collector.Add(idx, path, digest)
	}

	if opts.Workers > 1 {
		p := pool.New().WithMaxGoroutines(opts.Workers).WithContext(ctx)
		for idx, path := range paths {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				hashOne(idx, path)
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return Result{}, err
		}
	} else {
		for idx, path := range paths {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			hashOne(idx, path)
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{Groups: collector.Groups(), Hashed: collector.Len()}
	for idx := range paths {
		if skipped[idx] != nil {
			result.Skipped = append(result.Skipped, *skipped[idx])
		}
		if failures[idx] != nil {
			result.Failures = append(result.Failures, *failures[idx])
		}
	}
	return result, nil
}
