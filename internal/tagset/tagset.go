// Package tagset manages the SFW and NSFW tag vocabularies stored as sorted
// JSON arrays under the library's config directory.
package tagset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/services"
)

const (
	SFWFile  = "tags_sfw.json"
	NSFWFile = "tags_nsfw.json"
)

// DefaultSFW seeds tags_sfw.json.
var DefaultSFW = []string{"dog", "cat", "person", "beach", "sunset", "car", "mountain", "flower", "food", "sky"}

// DefaultNSFW seeds tags_nsfw.json.
var DefaultNSFW = []string{"nude", "sex", "cleavage", "underwear", "porn", "hentai"}

var lower = cases.Lower(language.Und)

// Normalize trims and lowercases a tag and collapses inner whitespace.
func Normalize(tag string) string {
	return lower.String(strings.Join(strings.Fields(tag), " "))
}

// Vocabulary is a set of normalized tags backed by a JSON file. It is safe
// for concurrent use.
type Vocabulary struct {
	path string
	tags mapset.Set[string]
}

// New returns an empty vocabulary that saves to path.
func New(path string, tags ...string) *Vocabulary {
	v := &Vocabulary{path: path, tags: mapset.NewSet[string]()}
	v.Add(tags...)
	return v
}

// Load reads the vocabulary at path. A missing file yields an empty
// vocabulary; a malformed one is a setup failure.
func Load(path string) (*Vocabulary, error) {
	tags, err := readTags(path)
	if err != nil {
		return nil, err
	}
	return New(path, tags...), nil
}

// Init merges defaults into the vocabulary at path and writes it back sorted.
// A malformed existing file is replaced. It returns the resulting vocabulary
// and whether the existing file had to be discarded.
func Init(path string, defaults []string) (*Vocabulary, bool, error) {
	existing, err := readTags(path)
	discarded := false
	if err != nil {
		if !errors.Is(err, services.ErrSetupFailure) {
			return nil, false, err
		}
		existing = nil
		discarded = true
	}
	v := New(path, existing...)
	v.Add(defaults...)
	if err := v.Save(); err != nil {
		return nil, discarded, err
	}
	return v, discarded, nil
}

// Path returns the backing file.
func (v *Vocabulary) Path() string { return v.path }

// Len returns the number of tags.
func (v *Vocabulary) Len() int { return v.tags.Cardinality() }

// Contains reports whether the normalized tag is present.
func (v *Vocabulary) Contains(tag string) bool { return v.tags.Contains(Normalize(tag)) }

// Tags returns the sorted tag list.
func (v *Vocabulary) Tags() []string { return mapset.Sorted(v.tags) }

// Add inserts tags and returns the normalized tags that were new.
func (v *Vocabulary) Add(tags ...string) []string {
	var added []string
	for _, tag := range tags {
		normalized := Normalize(tag)
		if normalized == "" {
			continue
		}
		if v.tags.Add(normalized) {
			added = append(added, normalized)
		}
	}
	return added
}

// Save writes the sorted vocabulary as an indented JSON array.
func (v *Vocabulary) Save() error {
	data, err := json.MarshalIndent(v.Tags(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if err := fileutil.WriteFileAtomic(v.path, append(data, '\n')); err != nil {
		return services.Wrap(services.ErrWriteFailed, "tags", "save", v.path, err)
	}
	return nil
}

// Paths returns the SFW and NSFW vocabulary paths inside dir.
func Paths(dir string) (sfw, nsfw string) {
	return filepath.Join(dir, SFWFile), filepath.Join(dir, NSFWFile)
}

func readTags(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrUnreadable, "tags", "read", path, err)
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, services.Wrap(services.ErrSetupFailure, "tags", "parse", path, err)
	}
	return tags, nil
}
