// Package media classifies library files by extension. Subpackages wrap the
// external ffprobe and ffmpeg tools.
package media
