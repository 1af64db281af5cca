// Package pipeline runs an ordered list of stages and tracks each stage's
// state.
//
// A stage with some failed items completes with errors and the run moves on.
// A stage that cannot set up, cannot persist its output, or succeeds on none
// of its expected items aborts the run; later stages stay pending and write
// nothing. Stages whose output already holds are skipped. Run always returns
// a Summary.
package pipeline
