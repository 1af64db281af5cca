// Package mediadate resolves the capture date used to file media under
// Organized/YYYY/MM/DD.
//
// Images are dated from EXIF DateTimeOriginal (falling back to the EXIF
// DateTime tag), videos from the container creation_time reported by ffprobe,
// and everything else from the file modification time. Date.Source records
// which of the three supplied the value so callers can count and log mtime
// fallbacks separately.
package mediadate
