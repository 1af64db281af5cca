package preflight

import (
	"context"
	"strings"

	"mediaorganizer/internal/config"
	"mediaorganizer/internal/deps"
	"mediaorganizer/internal/stage"
)

// Result reports the outcome of a single preflight check.
// Warn marks a passed check the operator should still look at.
type Result struct {
	Name   string
	Passed bool
	Warn   bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes the directory, tool, and stage health checks for cfg.
// handlers are the stages selected for the run.
func RunAll(ctx context.Context, cfg *config.Config, handlers []stage.Handler) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	library := CheckDirectoryAccess("Library directory", cfg.LibraryDir())
	results = append(results, library)
	if library.Passed {
		results = append(results, CheckFreeSpace("Library free space", cfg.LibraryDir(), minFreeBytes))
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, depResult(status))
	}

	results = append(results, CheckStages(ctx, handlers)...)
	return results
}

// CheckSystemDeps evaluates the external binaries used by the date and video
// tagging stages. ffmpeg is required only when video tagging can run.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	videoTagging := cfg.Tagging.Enabled && strings.TrimSpace(cfg.Tagging.ClassifierURL) != ""
	return deps.CheckBinaries(deps.MediaToolRequirements(
		cfg.Tagging.FFmpegBinary,
		cfg.Dates.FFprobeBinary,
		videoTagging,
	))
}

func depResult(status deps.Status) Result {
	switch {
	case status.Available:
		return Result{Name: status.Name, Passed: true, Detail: status.Command}
	case status.Optional:
		return Result{Name: status.Name, Passed: true, Warn: true, Detail: "optional, " + status.Detail + " (" + status.Description + ")"}
	default:
		return Result{Name: status.Name, Detail: status.Detail + " (" + status.Description + ")"}
	}
}
