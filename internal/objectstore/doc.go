// Package objectstore publishes produced files (enriched CSV, semantic
// artifact, rating statistics) to an S3-compatible bucket through minio-go.
//
// Publishing is opt-in: New returns ErrDisabled unless storage.enabled is set.
// Each uploaded object carries the file's SHA-256 in its user metadata so a
// consumer can verify a download without a second listing.
package objectstore
