package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeTagging()
	c.normalizeNSFW()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		if value, ok := os.LookupEnv("MEDIAORG_LIBRARY"); ok {
			c.Paths.LibraryDir = value
		}
	}
	var err error
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}

	managed := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.organized_dir", &c.Paths.OrganizedDir, defaultOrganizedDir},
		{"paths.duplicates_dir", &c.Paths.DuplicatesDir, defaultDuplicatesDir},
		{"paths.tagged_dir", &c.Paths.TaggedDir, defaultTaggedDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.tags_dir", &c.Paths.TagsDir, defaultTagsDir},
	}
	for _, entry := range managed {
		trimmed := strings.TrimSpace(*entry.value)
		if trimmed == "" {
			*entry.value = entry.fallback
			continue
		}
		// Only home-relative values are expanded here; plain relative values stay
		// relative so they follow the library root.
		if strings.HasPrefix(trimmed, "~") {
			expanded, err := expandPath(trimmed)
			if err != nil {
				return fmt.Errorf("%s: %w", entry.key, err)
			}
			trimmed = expanded
		}
		*entry.value = trimmed
	}
	return nil
}

func (c *Config) normalizeScan() {
	c.Scan.IgnoreFile = strings.TrimSpace(c.Scan.IgnoreFile)
	patterns := c.Scan.Exclude[:0]
	for _, pattern := range c.Scan.Exclude {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Scan.Exclude = patterns
}

func (c *Config) normalizeTagging() {
	c.Tagging.ClassifierURL = strings.TrimSpace(c.Tagging.ClassifierURL)
	if c.Tagging.ClassifierURL == "" {
		if value, ok := os.LookupEnv("MEDIAORG_CLASSIFIER_URL"); ok {
			c.Tagging.ClassifierURL = strings.TrimSpace(value)
		}
	}
	c.Tagging.FFmpegBinary = strings.TrimSpace(c.Tagging.FFmpegBinary)
	if c.Tagging.FFmpegBinary == "" {
		c.Tagging.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Tagging.Workers <= 0 {
		c.Tagging.Workers = defaultTaggingWorkers
	}
	if c.Tagging.TimeoutSeconds <= 0 {
		c.Tagging.TimeoutSeconds = defaultTaggingTimeout
	}
	c.Dates.FFprobeBinary = strings.TrimSpace(c.Dates.FFprobeBinary)
	if c.Dates.FFprobeBinary == "" {
		c.Dates.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeNSFW() {
	c.NSFW.ClassifierURL = strings.TrimSpace(c.NSFW.ClassifierURL)
	if c.NSFW.ClassifierURL == "" {
		if value, ok := os.LookupEnv("MEDIAORG_NSFW_URL"); ok {
			c.NSFW.ClassifierURL = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePipeline() {
	if c.Dedup.HashWorkers <= 0 {
		c.Dedup.HashWorkers = defaultHashWorkers
	}
	stages := c.Pipeline.Stages[:0]
	for _, name := range c.Pipeline.Stages {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			stages = append(stages, trimmed)
		}
	}
	c.Pipeline.Stages = stages
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
