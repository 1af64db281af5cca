// Package dedup groups byte-identical files by content fingerprint.
//
// The first path discovered for a digest is the canonical original; later
// paths are duplicates eligible for relocation. Groups with a single member
// are dropped. Hashing may run on a bounded pool, but results are placed by
// discovery index so canonical selection does not depend on scheduling.
package dedup
