package taglog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"mediaorganizer/internal/dedup"
	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/fingerprint"
	"mediaorganizer/internal/services"
)

// Log file names inside the log directory.
const (
	DuplicateLogFile = "duplicate_log.csv"
	MoveLogFile      = "move_log.csv"
	NSFWLogFile      = "nsfw_log.csv"
	ImageTagsFile    = "media_tags.tsv"
	VideoTagsFile    = "video_tags.tsv"
)

var (
	DuplicateHeader = []string{"GroupID", "Fingerprint", "Path", "Role"}
	MoveHeader      = []string{"Source", "Destination", "Stage"}
	NSFWHeader      = []string{"File", "Classification", "UnsafeScore", "NewLocation"}
	TagHeader       = []string{"FilePath", "Tags..."}
)

// Classification values written to the NSFW log.
const (
	ClassSafe    = "safe"
	ClassUnsafe  = "unsafe"
	ClassUnknown = "unknown"
)

// MoveRow is one relocation.
type MoveRow struct {
	Source      string
	Destination string
	Stage       string
}

// NSFWRow is one unsafe-content classification.
type NSFWRow struct {
	File           string
	Classification string
	UnsafeScore    float64
	NewLocation    string
}

// Unsafe reports whether the row was classified unsafe.
func (r NSFWRow) Unsafe() bool { return r.Classification == ClassUnsafe }

// WriteDuplicateLog rewrites the duplicate-group log atomically. Each member
// gets a row; the canonical path is marked original.
func WriteDuplicateLog(path string, groups []dedup.Group) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(DuplicateHeader); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "encode", path, err)
	}
	for _, group := range groups {
		for i, member := range group.Paths {
			row := []string{strconv.Itoa(group.ID), group.Digest.String(), member, string(group.RoleOf(i))}
			if err := w.Write(row); err != nil {
				return services.Wrap(services.ErrWriteFailed, "log", "encode", path, err)
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "encode", path, err)
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "write", path, err)
	}
	return nil
}

// ReadDuplicateLog rebuilds duplicate groups from the log. A missing file
// returns an error wrapping fs.ErrNotExist.
func ReadDuplicateLog(path string) ([]dedup.Group, error) {
	rows, err := readRows(path, ',', DuplicateHeader, true)
	if err != nil {
		return nil, err
	}
	var groups []dedup.Group
	index := map[int]int{}
	for i, row := range rows {
		if len(row) < 4 {
			return nil, malformed(path, i+2, "expected 4 columns")
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil || id <= 0 {
			return nil, malformed(path, i+2, "invalid group id "+strconv.Quote(row[0]))
		}
		pos, ok := index[id]
		if !ok {
			pos = len(groups)
			index[id] = pos
			groups = append(groups, dedup.Group{ID: id, Digest: fingerprint.Digest(row[1])})
		}
		// The original row always comes first for a group.
		if dedup.Role(row[3]) == dedup.RoleOriginal && len(groups[pos].Paths) > 0 {
			groups[pos].Paths = append([]string{row[2]}, groups[pos].Paths...)
			continue
		}
		groups[pos].Paths = append(groups[pos].Paths, row[2])
	}
	return groups, nil
}

// OpenMoveLog opens the move log for appending.
func OpenMoveLog(path string) (*Writer, error) {
	return Open(path, MoveHeader, ',', Append)
}

// WriteMove buffers a move row.
func (w *Writer) WriteMove(row MoveRow) error {
	return w.Write([]string{row.Source, row.Destination, row.Stage})
}

// ReadMoveLog returns every recorded move in file order. A missing file
// yields no rows.
func ReadMoveLog(path string) ([]MoveRow, error) {
	rows, err := readRows(path, ',', MoveHeader, false)
	if err != nil {
		return nil, err
	}
	out := make([]MoveRow, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, malformed(path, i+2, "expected 3 columns")
		}
		out = append(out, MoveRow{Source: row[0], Destination: row[1], Stage: row[2]})
	}
	return out, nil
}

// OpenNSFWLog opens the NSFW log.
func OpenNSFWLog(path string, mode Mode) (*Writer, error) {
	return Open(path, NSFWHeader, ',', mode)
}

// WriteNSFW buffers a classification row.
func (w *Writer) WriteNSFW(row NSFWRow) error {
	return w.Write([]string{row.File, row.Classification, strconv.FormatFloat(row.UnsafeScore, 'f', -1, 64), row.NewLocation})
}

// ReadNSFWLog returns classifications keyed by file. A missing file yields
// an empty map; later rows win.
func ReadNSFWLog(path string) (map[string]NSFWRow, error) {
	rows, err := readRows(path, ',', NSFWHeader, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]NSFWRow, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, malformed(path, i+2, "expected 4 columns")
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, malformed(path, i+2, "invalid unsafe score "+strconv.Quote(row[2]))
		}
		entry := NSFWRow{
			File:           row[0],
			Classification: strings.ToLower(strings.TrimSpace(row[1])),
			UnsafeScore:    score,
		}
		if len(row) > 3 {
			entry.NewLocation = row[3]
		}
		out[entry.File] = entry
	}
	return out, nil
}

// OpenTagLog opens a tab-separated tag log.
func OpenTagLog(path string, mode Mode) (*Writer, error) {
	return Open(path, TagHeader, '\t', mode)
}

// WriteTags buffers a path and its tags.
func (w *Writer) WriteTags(path string, tags []string) error {
	return w.Write(append([]string{path}, tags...))
}

// ReadTagLog returns tags keyed by path. Empty tag cells are dropped; a
// missing file yields an empty map; later rows win.
func ReadTagLog(path string) (map[string][]string, error) {
	rows, err := readRows(path, '\t', TagHeader, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(rows))
	for _, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		tags := make([]string, 0, len(row)-1)
		for _, tag := range row[1:] {
			if tag != "" {
				tags = append(tags, tag)
			}
		}
		out[row[0]] = tags
	}
	return out, nil
}

func readRows(path string, comma rune, header []string, required bool) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, malformed(path, 1, err.Error())
	}
	if len(first) == 0 || first[0] != header[0] {
		return nil, malformed(path, 1, "unexpected header "+strings.Join(first, string(comma)))
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(path, len(rows)+2, err.Error())
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func malformed(path string, line int, detail string) error {
	return services.Wrap(services.ErrValidation, "log", "parse", fmt.Sprintf("%s:%d: %s", path, line, detail), nil)
}
