package media

import (
	"path/filepath"
	"strings"
)

// Kind is the media category of a file.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindOther Kind = "other"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".bmp": {}, ".gif": {}, ".tiff": {}, ".heic": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".avi": {}, ".mkv": {}, ".wmv": {}, ".flv": {}, ".m4v": {}, ".webm": {},
}

// Formats the image classifier accepts.
var taggableImageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".bmp": {},
}

// KindOf returns the category for path based on its lowercased extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := imageExtensions[ext]; ok {
		return KindImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo
	}
	return KindOther
}

// IsImage reports whether path has a recognized image extension.
func IsImage(path string) bool { return KindOf(path) == KindImage }

// IsVideo reports whether path has a recognized video extension.
func IsVideo(path string) bool { return KindOf(path) == KindVideo }

// IsMedia reports whether path is an image or a video.
func IsMedia(path string) bool { return KindOf(path) != KindOther }

// IsTaggableImage reports whether path is an image format the classifier accepts.
func IsTaggableImage(path string) bool {
	_, ok := taggableImageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
