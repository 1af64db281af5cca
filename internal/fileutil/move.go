package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"mediaorganizer/internal/services"
)

// Outcome tags the result of an idempotent move.
type Outcome string

const (
	Moved            Outcome = "moved"
	AlreadySatisfied Outcome = "already_satisfied"
	Failed           Outcome = "failed"
)

// MoveResult reports what Move did.
type MoveResult struct {
	Outcome     Outcome
	Source      string
	Destination string
	// CrossDevice is set when the move fell back to copy and remove.
	CrossDevice bool
	Err         error
}

// AsError converts the result into the error a stage handler returns: nil for
// Moved, services.ErrAlreadyProcessed for AlreadySatisfied, Err for Failed.
func (r MoveResult) AsError() error {
	switch r.Outcome {
	case Moved:
		return nil
	case AlreadySatisfied:
		return services.Wrap(services.ErrAlreadyProcessed, "", "move", r.Source+" already at "+r.Destination, nil)
	default:
		if r.Err == nil {
			return services.Wrap(services.ErrTransient, "", "move", r.Source, nil)
		}
		return r.Err
	}
}

// Move relocates src to dst so that repeating the call after success is a
// no-op. It checks the destination first, renames (copying with verification
// across devices), and verifies the destination size afterwards.
func Move(src, dst string) MoveResult {
	result := MoveResult{Source: src, Destination: dst}
	fail := func(marker error, op string, err error) MoveResult {
		result.Outcome = Failed
		result.Err = services.Wrap(marker, "", op, src+" -> "+dst, err)
		return result
	}

	srcInfo, srcErr := os.Lstat(src)
	dstInfo, dstErr := os.Lstat(dst)

	if srcErr != nil {
		if errors.Is(srcErr, fs.ErrNotExist) && dstErr == nil {
			result.Outcome = AlreadySatisfied
			return result
		}
		return fail(services.ErrUnreadable, "stat source", srcErr)
	}
	if dstErr == nil {
		if os.SameFile(srcInfo, dstInfo) {
			result.Outcome = AlreadySatisfied
			return result
		}
		// A previous cross-device attempt may have copied but not removed the source.
		if dstInfo.Size() == srcInfo.Size() {
			if same, err := sameContent(src, dst); err == nil && same {
				if err := os.Remove(src); err != nil {
					return fail(services.ErrTransient, "remove source", err)
				}
				result.Outcome = Moved
				return result
			}
		}
		return fail(services.ErrValidation, "check destination", fmt.Errorf("destination exists with different content"))
	} else if !errors.Is(dstErr, fs.ErrNotExist) {
		return fail(services.ErrTransient, "stat destination", dstErr)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fail(services.ErrTransient, "create destination directory", err)
	}

	if err := os.Rename(src, dst); err != nil {
		if !errors.Is(err, unix.EXDEV) {
			return fail(services.ErrTransient, "rename", err)
		}
		result.CrossDevice = true
		if err := CopyFileVerified(src, dst); err != nil {
			return fail(services.ErrTransient, "copy across devices", err)
		}
		if err := os.Remove(src); err != nil {
			return fail(services.ErrTransient, "remove source after copy", err)
		}
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fail(services.ErrTransient, "verify destination", err)
	}
	if info.Size() != srcInfo.Size() {
		return fail(services.ErrValidation, "verify destination",
			fmt.Errorf("size mismatch: source %d bytes, destination %d bytes", srcInfo.Size(), info.Size()))
	}
	result.Outcome = Moved
	return result
}

// Naming returns the n-th collision candidate for a file name split into base
// and extension. n starts at 1.
type Naming func(base, ext string, n int) string

// DupSuffix names collisions base_dup{n}ext.
func DupSuffix(base, ext string, n int) string {
	return base + "_dup" + strconv.Itoa(n) + ext
}

// GroupDupSuffix names collisions base_dup{group}_{n}ext.
func GroupDupSuffix(group int) Naming {
	return func(base, ext string, n int) string {
		return base + "_dup" + strconv.Itoa(group) + "_" + strconv.Itoa(n) + ext
	}
}

// Planner assigns collision-free destinations and remembers them per source,
// so a retried item targets the same path it did the first time.
type Planner struct {
	mu       sync.Mutex
	planned  map[string]string
	reserved map[string]string
}

// NewPlanner returns an empty planner.
func NewPlanner() *Planner {
	return &Planner{planned: make(map[string]string), reserved: make(map[string]string)}
}

// Seed records a destination chosen in an earlier run, e.g. from a move log.
func (p *Planner) Seed(src, dst string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planned[src] = dst
	p.reserved[dst] = src
}

// Planned returns the remembered destination for src.
func (p *Planner) Planned(src string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dst, ok := p.planned[src]
	return dst, ok
}

// Owner returns the source a destination is reserved for.
func (p *Planner) Owner(dst string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.reserved[dst]
	return src, ok
}

// Plan returns the destination for src inside dir. The plain file name is
// tried first, then naming(base, ext, 1), naming(base, ext, 2), ... until a
// name is neither on disk nor reserved for another source.
func (p *Planner) Plan(src, dir string, naming Naming) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if dst, ok := p.planned[src]; ok {
		return dst
	}
	if naming == nil {
		naming = DupSuffix
	}

	name := filepath.Base(src)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for n := 1; !p.available(src, candidate); n++ {
		candidate = filepath.Join(dir, naming(base, ext, n))
	}
	p.planned[src] = candidate
	p.reserved[candidate] = src
	return candidate
}

func (p *Planner) available(src, candidate string) bool {
	if owner, ok := p.reserved[candidate]; ok && owner != src {
		return false
	}
	if candidate == src {
		return true
	}
	_, err := os.Lstat(candidate)
	return errors.Is(err, fs.ErrNotExist)
}

func sameContent(a, b string) (bool, error) {
	ha, err := sha256File(a)
	if err != nil {
		return false, err
	}
	hb, err := sha256File(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
