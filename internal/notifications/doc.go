// Package notifications delivers run events via ntfy.
//
// The default implementation publishes to the topic configured in
// config.toml and degrades to a no-op when no topic is set. Event types cover
// the enrichment and semantic build milestones; per-category switches in the
// config suppress events the operator does not want.
package notifications
