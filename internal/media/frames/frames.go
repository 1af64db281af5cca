// Package frames samples still frames from video files with ffmpeg so they
// can be sent to an image classifier.
package frames

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"mediaorganizer/internal/services"
)

// framePattern names extracted frames; the numbering keeps lexical order
// equal to playback order.
const framePattern = "frame_%04d.jpg"

// Options controls frame sampling.
type Options struct {
	// Binary is the ffmpeg executable; empty means "ffmpeg" from PATH.
	Binary string
	// IntervalSeconds between sampled frames.
	IntervalSeconds int
	// MaxFrames caps the number of frames written.
	MaxFrames int
}

// Sample writes up to MaxFrames JPEG frames from source into dir, one every
// IntervalSeconds, and returns their paths in playback order.
func Sample(ctx context.Context, source, dir string, opts Options) ([]string, error) {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	interval := opts.IntervalSeconds
	if interval <= 0 {
		interval = 1
	}
	if opts.MaxFrames <= 0 {
		return nil, fmt.Errorf("sample frames: invalid frame limit %d", opts.MaxFrames)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWriteFailed, "frames", "create frame dir", dir, err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-an",
		"-sn",
		"-dn",
		"-vf", fmt.Sprintf("fps=1/%d", interval),
		"-frames:v", fmt.Sprintf("%d", opts.MaxFrames),
		"-q:v", "2",
		filepath.Join(dir, framePattern),
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		detail := fmt.Sprintf("%s: %s", source, strings.TrimSpace(string(output)))
		return nil, services.Wrap(services.ErrExternalTool, "frames", "ffmpeg sample", detail, err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrValidation, "frames", "ffmpeg sample", source+": no frames decoded", nil)
	}
	if len(paths) > opts.MaxFrames {
		paths = paths[:opts.MaxFrames]
	}
	return paths, nil
}

// Batches splits paths into consecutive groups of at most size entries.
func Batches(paths []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(paths); start += size {
		end := min(start+size, len(paths))
		out = append(out, paths[start:end])
	}
	return out
}
