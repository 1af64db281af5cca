// Package scan discovers files under a library root.
//
// Walks are lexical, so discovery order is reproducible run to run. Managed
// directories, the library's ignore file, and exclude globs prune the tree;
// symlinks and files below the minimum size are reported as skipped rather
// than returned.
package scan
