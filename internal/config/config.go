package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the library root and the managed directories derived from it.
// Relative values are resolved against LibraryDir.
type Paths struct {
	LibraryDir    string `toml:"library_dir"`
	OrganizedDir  string `toml:"organized_dir"`
	DuplicatesDir string `toml:"duplicates_dir"`
	TaggedDir     string `toml:"tagged_dir"`
	LogDir        string `toml:"log_dir"`
	StateDir      string `toml:"state_dir"`
	TagsDir       string `toml:"tags_dir"`
}

// Scan controls which files directory walks consider.
type Scan struct {
	IgnoreFile string   `toml:"ignore_file"`
	Exclude    []string `toml:"exclude"`
}

// Dedup contains duplicate detection settings.
type Dedup struct {
	MinFileSizeKB int `toml:"min_file_size_kb"`
	HashWorkers   int `toml:"hash_workers"`
}

// Tagging contains classifier settings for image and video tagging.
type Tagging struct {
	Enabled              bool    `toml:"enabled"`
	ClassifierURL        string  `toml:"classifier_url"`
	ConfidenceThreshold  float64 `toml:"confidence_threshold"`
	BatchSize            int     `toml:"batch_size"`
	Workers              int     `toml:"workers"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
	FrameIntervalSeconds int     `toml:"frame_interval_seconds"`
	MaxVideoFrames       int     `toml:"max_video_frames"`
	FFmpegBinary         string  `toml:"ffmpeg_binary"`
}

// NSFW contains settings for the unsafe-content detection stage.
type NSFW struct {
	ClassifierURL   string  `toml:"classifier_url"`
	UnsafeThreshold float64 `toml:"unsafe_threshold"`
}

// Dates contains capture date extraction settings.
type Dates struct {
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Pipeline contains stage selection and the resume default. Failed items are
// always retried exactly once.
type Pipeline struct {
	Resume bool     `toml:"resume"`
	Stages []string `toml:"stages"`
}

// History controls the optional sqlite run history.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the media organizer.
//
// Configuration sections by subsystem:
//   - Paths: library root and managed output directories
//   - Scan: ignore file and exclude globs applied to every directory walk
//   - Dedup: minimum file size and hashing parallelism
//   - Tagging: classifier endpoint, confidence cutoff, batch size
//   - NSFW: unsafe-content classifier endpoint and threshold
//   - Dates: metadata tool used for video capture dates
//   - Pipeline: resume default and stage selection
//   - History: sqlite run history
//   - Logging: log format, level, and retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Scan     Scan     `toml:"scan"`
	Dedup    Dedup    `toml:"dedup"`
	Tagging  Tagging  `toml:"tagging"`
	NSFW     NSFW     `toml:"nsfw"`
	Dates    Dates    `toml:"dates"`
	Pipeline Pipeline `toml:"pipeline"`
	History  History  `toml:"history"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaorg/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaorg.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SetLibraryDir overrides the library root, typically from a CLI argument.
func (c *Config) SetLibraryDir(dir string) error {
	expanded, err := expandPath(strings.TrimSpace(dir))
	if err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	c.Paths.LibraryDir = expanded
	return nil
}

// LibraryDir returns the root directory being organized.
func (c *Config) LibraryDir() string { return c.Paths.LibraryDir }

// OrganizedDir returns the date-sorted output tree.
func (c *Config) OrganizedDir() string {
	return c.resolve(c.Paths.OrganizedDir, defaultOrganizedDir)
}

// DuplicatesDir returns the directory receiving relocated duplicates.
func (c *Config) DuplicatesDir() string {
	return c.resolve(c.Paths.DuplicatesDir, defaultDuplicatesDir)
}

// NSFWDir returns the directory receiving files classified as unsafe.
func (c *Config) NSFWDir() string {
	return filepath.Join(c.resolve(c.Paths.TaggedDir, defaultTaggedDir), "NSFW")
}

// TaggedDir returns the root of the tagged output tree.
func (c *Config) TaggedDir() string { return c.resolve(c.Paths.TaggedDir, defaultTaggedDir) }

// LogDir returns the directory holding logs and stage reports.
func (c *Config) LogDir() string { return c.resolve(c.Paths.LogDir, defaultLogDir) }

// StateDir returns the directory holding checkpoints, the run lock, and history.
func (c *Config) StateDir() string { return c.resolve(c.Paths.StateDir, defaultStateDir) }

// TagsDir returns the directory holding the tag vocabulary files.
func (c *Config) TagsDir() string { return c.resolve(c.Paths.TagsDir, defaultTagsDir) }

// MinFileSizeBytes converts the dedup threshold to bytes.
func (c *Config) MinFileSizeBytes() int64 {
	if c.Dedup.MinFileSizeKB <= 0 {
		return 0
	}
	return int64(c.Dedup.MinFileSizeKB) * 1024
}

func (c *Config) resolve(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(c.Paths.LibraryDir, value)
}

// EnsureDirectories creates the log and state directories for the current library.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return nil
	}
	for _, dir := range []string{c.LogDir(), c.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
