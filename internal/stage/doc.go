// Package stage defines the contract between pipeline stages and the runner.
package stage
