// Package organizer implements the media library stages run by the pipeline:
// tag vocabulary setup, duplicate detection and relocation, date sorting,
// unsafe-content detection, image and video tagging, and the merged index.
//
// Each stage is a stage.Handler. Stages discover their items fresh from disk
// in Prepare, process one file per call, and write stage-level output in
// Finish. Relocations go through fileutil.Move with a shared Planner seeded
// from the move log, so a retried or resumed item always targets the same
// destination it did the first time.
package organizer
