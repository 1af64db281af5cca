// Package fingerprint computes content digests used to identify byte-identical
// media files.
package fingerprint
