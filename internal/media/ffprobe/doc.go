// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties and tags
//   - Format: container-level metadata (duration, tags)
//
// Inspect executes ffprobe and returns the parsed Result; CreationTime reads
// the container or video stream creation_time tag used to date videos.
package ffprobe
