// Package services defines shared utilities consumed by the enrichment
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, movie IDs, and component names for
//     logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent checkpoint statuses (not found vs failed).
//   - Retry helpers shared by the HTTP clients (backoff, context-aware sleep,
//     transient error detection).
package services
