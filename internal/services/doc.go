// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, item paths, and retry
//     attempts for logging.
//   - Structured error markers plus the Wrap helper so the stage runner can tell
//     per-item failures (unreadable files) apart from pipeline-fatal ones (setup
//     and write failures).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
