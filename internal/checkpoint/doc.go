// Package checkpoint persists per-movie enrichment progress in SQLite so an
// interrupted run can resume where it stopped.
//
// Every processed movie gets one row keyed by MovieLens movie ID holding the
// outcome status, the fetched details as JSON, the last error and an attempt
// counter. The database is a scratch file for a single run: schema changes bump
// schemaVersion and users clear the checkpoint to adopt the new layout.
package checkpoint
