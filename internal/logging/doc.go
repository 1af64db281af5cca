// Package logging assembles structured slog loggers and formatting helpers
// used across the media organizer.
//
// It owns the console and JSON handlers, the optional JSON log file kept under
// the library's log directory, and context helpers that tag records with the
// run id, stage, item path, and attempt. A no-op logger is provided for tests
// and wiring code that cannot fail.
package logging
