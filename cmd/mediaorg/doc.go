// Package main hosts the mediaorg CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration and the library directory,
// runs the stage pipeline under the library lock, and renders run summaries,
// checkpoints, history, and readiness checks as terminal tables.
//
// Keep this package lean: behavior lives in the internal packages and is only
// surfaced here through commands and flags.
package main
