// Package preflight provides readiness checks for the library directories,
// the ffmpeg tools, and the classifier endpoints the pipeline stages call.
//
// The CLI "check" command runs RunAll and prints every result. "run" calls
// RunAll before the first stage and refuses to start when a required check
// fails, so a missing library or an unreachable classifier is reported up
// front instead of as thousands of item failures.
//
// Stages that would be skipped (tagging disabled, no classifier configured)
// are reported as passed with the skip reason.
package preflight
