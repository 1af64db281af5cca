// Package index merges the tag and NSFW logs into media_index.jsonl, one
// JSON object per tagged file.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/services"
	"mediaorganizer/internal/taglog"
)

// FileName is the index written inside the log directory.
const FileName = "media_index.jsonl"

// Entry is one line of the index.
type Entry struct {
	File        string   `json:"file"`
	Tags        []string `json:"tags"`
	NSFW        bool     `json:"nsfw"`
	UnsafeScore float64  `json:"unsafe_score"`
	CaptureDate *string  `json:"capture_date"`
}

// Inputs are the parsed logs the index is built from.
type Inputs struct {
	ImageTags map[string][]string
	VideoTags map[string][]string
	NSFW      map[string]taglog.NSFWRow
}

// DateFunc returns the YYYY-MM-DD capture date for path, or false when it
// cannot be determined.
type DateFunc func(path string) (string, bool)

// MtimeDate reads the modification date of path.
func MtimeDate(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return info.ModTime().Local().Format(time.DateOnly), true
}

// ReadInputs loads the three logs. Missing logs contribute nothing.
func ReadInputs(imageTags, videoTags, nsfwLog string) (Inputs, error) {
	var (
		in  Inputs
		err error
	)
	if in.ImageTags, err = taglog.ReadTagLog(imageTags); err != nil {
		return Inputs{}, err
	}
	if in.VideoTags, err = taglog.ReadTagLog(videoTags); err != nil {
		return Inputs{}, err
	}
	if in.NSFW, err = taglog.ReadNSFWLog(nsfwLog); err != nil {
		return Inputs{}, err
	}
	return in, nil
}

// Files returns the sorted union of tagged paths.
func (in Inputs) Files() []string {
	files := mapset.NewThreadUnsafeSet[string]()
	for path := range in.ImageTags {
		files.Add(path)
	}
	for path := range in.VideoTags {
		files.Add(path)
	}
	return mapset.Sorted(files)
}

// Entry builds the index entry for one file. Tags from both logs are
// deduplicated and sorted; a file without an NSFW row is unknown with score 0.
func (in Inputs) Entry(path string, date DateFunc) Entry {
	tags := mapset.NewThreadUnsafeSet[string]()
	for _, tag := range in.ImageTags[path] {
		tags.Add(tag)
	}
	for _, tag := range in.VideoTags[path] {
		tags.Add(tag)
	}
	entry := Entry{File: path, Tags: mapset.Sorted(tags)}
	if row, ok := in.NSFW[path]; ok {
		entry.NSFW = row.Unsafe()
		entry.UnsafeScore = row.UnsafeScore
	}
	if date != nil {
		if day, ok := date(path); ok {
			entry.CaptureDate = &day
		}
	}
	return entry
}

// Build returns entries for every tagged file in path order.
func Build(in Inputs, date DateFunc) []Entry {
	files := in.Files()
	entries := make([]Entry, 0, len(files))
	for _, path := range files {
		entries = append(entries, in.Entry(path, date))
	}
	return entries
}

// Write replaces the index at path atomically.
func Write(path string, entries []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, entry := range entries {
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		if err := enc.Encode(entry); err != nil {
			return services.Wrap(services.ErrWriteFailed, "index", "encode", entry.File, err)
		}
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return services.Wrap(services.ErrWriteFailed, "index", "write", path, err)
	}
	return nil
}

// Read parses an index file.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// UpToDate reports whether output exists and is newer than every existing
// input. At least one input must exist for the index to be current.
func UpToDate(output string, inputs ...string) (bool, error) {
	outInfo, err := os.Stat(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	found := false
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return false, err
		}
		found = true
		if !outInfo.ModTime().After(info.ModTime()) {
			return false, nil
		}
	}
	return found, nil
}
