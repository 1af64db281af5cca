package organizer

import (
	"context"
	"log/slog"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/logging"
	"mediaorganizer/internal/media"
	"mediaorganizer/internal/mediadate"
	"mediaorganizer/internal/scan"
	"mediaorganizer/internal/taglog"
)

// DateResolver determines the capture date of a file.
type DateResolver interface {
	Resolve(ctx context.Context, path string) (mediadate.Date, error)
}

// OrganizeByDate moves every file under the library root into
// Organized/YYYY/MM/DD. Files without embedded dates use their modification
// time; those fallbacks are counted and logged.
type OrganizeByDate struct {
	base
	dates DateResolver
	reloc relocator
}

// NewOrganizeByDate constructs the organize_by_date stage.
func NewOrganizeByDate(cfg *config.Config, dates DateResolver, logger *slog.Logger) *OrganizeByDate {
	return &OrganizeByDate{
		base:  newBase(StageOrganizeByDate, cfg, logger),
		dates: dates,
		reloc: relocator{stage: StageOrganizeByDate},
	}
}

func (s *OrganizeByDate) Prepare(ctx context.Context) ([]string, error) {
	s.resetCounts()
	res, err := scan.Walk(ctx, s.walkOptions(s.cfg.LibraryDir()))
	if err != nil {
		return nil, err
	}
	s.logSkips(res.Skipped)
	if err := s.reloc.seed(s.logPath(taglog.MoveLogFile)); err != nil {
		return nil, err
	}
	return res.Paths(), nil
}

func (s *OrganizeByDate) Process(ctx context.Context, item string) error {
	date, err := s.dates.Resolve(ctx, item)
	if err != nil {
		return err
	}
	isMedia := media.IsMedia(item)
	if !isMedia {
		s.count(CounterNonMedia, 1)
	}
	if date.Fallback() && isMedia {
		s.count(CounterDateFallback, 1)
		s.logger.Info("capture date missing; using modification time",
			logging.Path(item),
			logging.String("date", date.Day()),
			logging.String(logging.FieldEventType, "date_fallback"),
		)
	}

	dst, _, err := s.reloc.move(item, date.Dir(s.cfg.OrganizedDir()), fileutil.DupSuffix)
	if err != nil {
		return err
	}
	s.logger.Debug("file organized",
		logging.Path(item),
		logging.String("destination", dst),
		logging.String("date_source", string(date.Source)),
		logging.String(logging.FieldEventType, "file_organized"),
	)
	return nil
}

func (s *OrganizeByDate) Flush(context.Context) error { return s.reloc.flush() }

func (s *OrganizeByDate) Finish(context.Context) error { return s.reloc.close() }

// Close releases the move log when the stage stopped before Finish.
func (s *OrganizeByDate) Close() error { return s.reloc.close() }
