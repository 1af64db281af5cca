package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaorganizer/internal/config"
)

func TestLoadDefaultConfigUsesEnvLibraryAndDerivesPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	library := filepath.Join(tempHome, "photos")
	t.Setenv("MEDIAORG_LIBRARY", library)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.LibraryDir() != library {
		t.Fatalf("unexpected library dir: got %q want %q", cfg.LibraryDir(), library)
	}
	if got := cfg.OrganizedDir(); got != filepath.Join(library, "Organized") {
		t.Fatalf("unexpected organized dir: %q", got)
	}
	if got := cfg.DuplicatesDir(); got != filepath.Join(library, "Duplicates") {
		t.Fatalf("unexpected duplicates dir: %q", got)
	}
	if got := cfg.NSFWDir(); got != filepath.Join(library, "Tagged", "NSFW") {
		t.Fatalf("unexpected nsfw dir: %q", got)
	}
	if got := cfg.StateDir(); got != filepath.Join(library, "logs", "checkpoints") {
		t.Fatalf("unexpected state dir: %q", got)
	}
	if cfg.Dedup.MinFileSizeKB != 1 {
		t.Fatalf("unexpected min file size: %d", cfg.Dedup.MinFileSizeKB)
	}
	if cfg.MinFileSizeBytes() != 1024 {
		t.Fatalf("unexpected min file size bytes: %d", cfg.MinFileSizeBytes())
	}
	if cfg.Tagging.ConfidenceThreshold != 0.3 {
		t.Fatalf("unexpected confidence threshold: %v", cfg.Tagging.ConfidenceThreshold)
	}
	if !cfg.Pipeline.Resume {
		t.Fatal("expected resume enabled by default")
	}
	if cfg.History.Enabled {
		t.Fatal("expected history disabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.LogDir(), cfg.StateDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mediaorg.toml")

	type payload struct {
		Paths struct {
			LibraryDir   string `toml:"library_dir"`
			OrganizedDir string `toml:"organized_dir"`
		} `toml:"paths"`
		Dedup struct {
			MinFileSizeKB int `toml:"min_file_size_kb"`
		} `toml:"dedup"`
		Tagging struct {
			ConfidenceThreshold float64 `toml:"confidence_threshold"`
			BatchSize           int     `toml:"batch_size"`
			ClassifierURL       string  `toml:"classifier_url"`
		} `toml:"tagging"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.LibraryDir = filepath.Join(tempDir, "library")
	custom.Paths.OrganizedDir = "/srv/sorted"
	custom.Dedup.MinFileSizeKB = 64
	custom.Tagging.ConfidenceThreshold = 0.5
	custom.Tagging.BatchSize = 16
	custom.Tagging.ClassifierURL = " http://127.0.0.1:5000/evaluate "
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.OrganizedDir() != "/srv/sorted" {
		t.Fatalf("expected absolute organized dir to be kept, got %q", cfg.OrganizedDir())
	}
	if cfg.DuplicatesDir() != filepath.Join(tempDir, "library", "Duplicates") {
		t.Fatalf("unexpected duplicates dir: %q", cfg.DuplicatesDir())
	}
	if cfg.MinFileSizeBytes() != 64*1024 {
		t.Fatalf("unexpected min size: %d", cfg.MinFileSizeBytes())
	}
	if cfg.Tagging.BatchSize != 16 || cfg.Tagging.ConfidenceThreshold != 0.5 {
		t.Fatalf("unexpected tagging config: %+v", cfg.Tagging)
	}
	if cfg.Tagging.ClassifierURL != "http://127.0.0.1:5000/evaluate" {
		t.Fatalf("expected trimmed classifier url, got %q", cfg.Tagging.ClassifierURL)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
}

func TestSetLibraryDirMovesDerivedPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEDIAORG_LIBRARY", "")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	target := t.TempDir()
	if err := cfg.SetLibraryDir(target); err != nil {
		t.Fatalf("SetLibraryDir: %v", err)
	}
	if cfg.LogDir() != filepath.Join(target, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.LogDir())
	}
	if cfg.TagsDir() != filepath.Join(target, "config") {
		t.Fatalf("unexpected tags dir: %q", cfg.TagsDir())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"confidence above one", func(c *config.Config) { c.Tagging.ConfidenceThreshold = 1.5 }, "tagging.confidence_threshold"},
		{"zero batch size", func(c *config.Config) { c.Tagging.BatchSize = 0 }, "tagging.batch_size"},
		{"negative min size", func(c *config.Config) { c.Dedup.MinFileSizeKB = -1 }, "dedup.min_file_size_kb"},
		{"bad glob", func(c *config.Config) { c.Scan.Exclude = []string{"[unclosed"} }, "scan.exclude"},
		{"bad url scheme", func(c *config.Config) { c.NSFW.ClassifierURL = "ftp://host/x" }, "nsfw.classifier_url"},
		{"duplicate stage", func(c *config.Config) { c.Pipeline.Stages = []string{"tag_images", "tag_images"} }, "pipeline.stages"},
		{"unknown log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in error, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPipelineRetryIsNotConfigurable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "mediaorg.toml")
	content := "[paths]\nlibrary_dir = \"" + filepath.ToSlash(filepath.Join(dir, "library")) + "\"\n\n[pipeline]\nmax_attempts = 5\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load rejected a config carrying max_attempts: %v", err)
	}
	if !cfg.Pipeline.Resume {
		t.Fatal("pipeline defaults lost")
	}

	sample := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(sample); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(sample)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if strings.Contains(string(data), "max_attempts") {
		t.Fatal("sample config must not offer a retry count")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Tagging.BatchSize != 2 {
		t.Fatalf("unexpected sample batch size: %d", cfg.Tagging.BatchSize)
	}
}
