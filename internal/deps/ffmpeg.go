package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobe returns the ffprobe binary to run for capture dates.
//
// A bare "ffprobe" is resolved next to the configured ffmpeg first so both
// tools come from the same build; otherwise the configured value is returned
// unchanged and PATH resolution happens at exec time.
func ResolveFFprobe(ffmpegCommand, ffprobeCommand string) string {
	probe := strings.TrimSpace(ffprobeCommand)
	if probe == "" {
		probe = "ffprobe"
	}
	if probe != "ffprobe" {
		return probe
	}
	ffmpeg := strings.TrimSpace(ffmpegCommand)
	if ffmpeg == "" {
		return probe
	}
	resolved, err := exec.LookPath(ffmpeg)
	if err != nil {
		return probe
	}
	candidate := siblingBinary(resolved, "ffprobe")
	if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
		return candidate
	}
	return probe
}

// MediaToolRequirements lists the ffmpeg tools used by the date and video
// tagging stages. ffmpeg is optional when video tagging is disabled.
func MediaToolRequirements(ffmpegCommand, ffprobeCommand string, videoTagging bool) []Requirement {
	return []Requirement{
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobe(ffmpegCommand, ffprobeCommand),
			Description: "Reads video creation dates; mtime is used without it",
			Optional:    true,
		},
		{
			Name:        "FFmpeg",
			Command:     strings.TrimSpace(ffmpegCommand),
			Description: "Samples video frames for tagging",
			Optional:    !videoTagging,
		},
	}
}

func siblingBinary(path, name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(path), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
