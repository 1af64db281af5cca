package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"mediaorganizer/internal/fileutil"
	"mediaorganizer/internal/services"
)

const fileSuffix = ".json"

// Set is a collection of completed item paths.
type Set = mapset.Set[string]

// NewSet returns a thread-safe set seeded with paths.
func NewSet(paths ...string) Set {
	return mapset.NewSet(paths...)
}

// Record is the on-disk form of a stage checkpoint.
type Record struct {
	Stage     string    `json:"stage"`
	Completed []string  `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Info summarizes a stored checkpoint.
type Info struct {
	Stage     string
	Path      string
	Count     int
	UpdatedAt time.Time
}

// Store reads and writes stage checkpoints under a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the checkpoint file for stage.
func (s *Store) Path(stage string) string {
	return filepath.Join(s.dir, stage+fileSuffix)
}

// Exists reports whether a checkpoint file is present for stage.
func (s *Store) Exists(stage string) bool {
	if err := validateStage(stage); err != nil {
		return false
	}
	_, err := os.Stat(s.Path(stage))
	return err == nil
}

// Load returns the completed set for stage. A missing file yields an empty set.
func (s *Store) Load(stage string) (Set, error) {
	record, err := s.read(stage)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewSet(), nil
		}
		return nil, err
	}
	return NewSet(record.Completed...), nil
}

func (s *Store) read(stage string) (Record, error) {
	if err := validateStage(stage); err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(s.Path(stage))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, err
		}
		return Record{}, services.Wrap(services.ErrSetupFailure, stage, "load checkpoint", s.Path(stage), err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, services.Wrap(services.ErrSetupFailure, stage, "decode checkpoint",
			"checkpoint file is corrupt; reset it to reprocess the stage", err)
	}
	return record, nil
}

// Save overwrites the checkpoint for stage with completed. Failures wrap
// services.ErrWriteFailed.
func (s *Store) Save(stage string, completed Set) error {
	if err := validateStage(stage); err != nil {
		return services.Wrap(services.ErrWriteFailed, stage, "save checkpoint", "invalid stage name", err)
	}
	paths := []string{}
	if completed != nil {
		paths = mapset.Sorted(completed)
	}
	record := Record{Stage: stage, Completed: paths, UpdatedAt: s.now().UTC()}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrWriteFailed, stage, "encode checkpoint", "", err)
	}
	if err := fileutil.WriteFileAtomic(s.Path(stage), append(data, '\n')); err != nil {
		return services.Wrap(services.ErrWriteFailed, stage, "save checkpoint", s.Path(stage), err)
	}
	return nil
}

// Reset deletes the checkpoint for stage. A missing file is not an error.
func (s *Store) Reset(stage string) error {
	if err := validateStage(stage); err != nil {
		return err
	}
	if err := os.Remove(s.Path(stage)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrWriteFailed, stage, "reset checkpoint", s.Path(stage), err)
	}
	return nil
}

// List summarizes every checkpoint in the directory, sorted by stage name.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stage := strings.TrimSuffix(name, fileSuffix)
		record, err := s.read(stage)
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{
			Stage:     stage,
			Path:      s.Path(stage),
			Count:     len(record.Completed),
			UpdatedAt: record.UpdatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Stage < infos[j].Stage })
	return infos, nil
}

func validateStage(stage string) error {
	if strings.TrimSpace(stage) == "" {
		return fmt.Errorf("stage name is empty")
	}
	if strings.ContainsAny(stage, `/\`) || stage == "." || stage == ".." {
		return fmt.Errorf("stage name %q is not a plain name", stage)
	}
	return nil
}
