// Package stageexec runs one pipeline stage over its items.
//
// Every item is attempted: failures are retried according to a RetryPolicy,
// then recorded in the stage result and logged, and never stop the loop.
// Completed items are merged into the stage checkpoint every batch and at the
// end, after the stage flushes its buffered output.
package stageexec
