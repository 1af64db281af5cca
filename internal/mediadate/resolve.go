package mediadate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/media"
	"mediaorganizer/internal/media/ffprobe"
	"mediaorganizer/internal/services"
)

// Source names where a capture date came from.
type Source string

const (
	SourceEXIF      Source = "exif"
	SourceContainer Source = "container"
	SourceMtime     Source = "mtime"
)

// Date is a resolved capture date.
type Date struct {
	Time   time.Time
	Source Source
}

// Fallback reports whether the date came from the file modification time.
func (d Date) Fallback() bool { return d.Source == SourceMtime }

// Dir returns root/YYYY/MM/DD for the date.
func (d Date) Dir(root string) string {
	return filepath.Join(root, d.Time.Format("2006"), d.Time.Format("01"), d.Time.Format("02"))
}

// Day formats the date as YYYY-MM-DD.
func (d Date) Day() string { return d.Time.Format("2006-01-02") }

// ProbeFunc inspects a video container.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Resolver determines capture dates.
type Resolver struct {
	ffprobeBinary string
	probe         ProbeFunc
	logger        *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithProbe overrides the ffprobe invocation (useful for tests).
func WithProbe(fn ProbeFunc) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.probe = fn
		}
	}
}

// WithLogger attaches a logger for metadata read failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a Resolver that runs the given ffprobe binary for videos.
func NewResolver(ffprobeBinary string, opts ...Option) *Resolver {
	r := &Resolver{
		ffprobeBinary: ffprobeBinary,
		probe:         ffprobe.Inspect,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r
}

// Resolve returns the capture date of path. Metadata read failures fall
// through to the modification time; only an unreadable file is an error.
func (r *Resolver) Resolve(ctx context.Context, path string) (Date, error) {
	switch media.KindOf(path) {
	case media.KindImage:
		ts, err := exifDate(path)
		if err == nil {
			return Date{Time: ts, Source: SourceEXIF}, nil
		}
		r.logger.Debug("exif date unavailable", logging.Path(path), logging.Error(err))
	case media.KindVideo:
		result, err := r.probe(ctx, r.ffprobeBinary, path)
		if err == nil {
			if ts, ok := result.CreationTime(); ok {
				return Date{Time: ts.Local(), Source: SourceContainer}, nil
			}
			r.logger.Debug("container creation time missing", logging.Path(path))
		} else {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Date{}, ctxErr
			}
			r.logger.Debug("ffprobe failed", logging.Path(path), logging.Error(err))
		}
	}
	return mtimeDate(path)
}

func exifDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := x.DateTime()
	if err != nil {
		return time.Time{}, err
	}
	if ts.Year() < 1900 {
		return time.Time{}, fmt.Errorf("implausible exif date %s", ts.Format(time.DateOnly))
	}
	return ts, nil
}

func mtimeDate(path string) (Date, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Date{}, services.Wrap(services.ErrUnreadable, "mediadate", "stat", path, err)
	}
	return Date{Time: info.ModTime().Local(), Source: SourceMtime}, nil
}
