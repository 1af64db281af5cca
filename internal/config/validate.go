package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateTagging(); err != nil {
		return err
	}
	if err := c.validateNSFW(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScan() error {
	for _, pattern := range c.Scan.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("scan.exclude: invalid glob %q", pattern)
		}
	}
	return nil
}

func (c *Config) validateDedup() error {
	if c.Dedup.MinFileSizeKB < 0 {
		return errors.New("dedup.min_file_size_kb must be zero or positive")
	}
	return ensurePositiveMap(map[string]int{
		"dedup.hash_workers": c.Dedup.HashWorkers,
	})
}

func (c *Config) validateTagging() error {
	if c.Tagging.ConfidenceThreshold < 0 || c.Tagging.ConfidenceThreshold > 1 {
		return errors.New("tagging.confidence_threshold must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"tagging.batch_size":             c.Tagging.BatchSize,
		"tagging.workers":                c.Tagging.Workers,
		"tagging.timeout_seconds":        c.Tagging.TimeoutSeconds,
		"tagging.frame_interval_seconds": c.Tagging.FrameIntervalSeconds,
		"tagging.max_video_frames":       c.Tagging.MaxVideoFrames,
	}); err != nil {
		return err
	}
	return validateURL("tagging.classifier_url", c.Tagging.ClassifierURL)
}

func (c *Config) validateNSFW() error {
	if c.NSFW.UnsafeThreshold <= 0 || c.NSFW.UnsafeThreshold > 1 {
		return errors.New("nsfw.unsafe_threshold must be greater than 0 and at most 1")
	}
	return validateURL("nsfw.classifier_url", c.NSFW.ClassifierURL)
}

func (c *Config) validatePipeline() error {
	seen := make(map[string]struct{}, len(c.Pipeline.Stages))
	for _, name := range c.Pipeline.Stages {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("pipeline.stages lists %q more than once", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func validateURL(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
