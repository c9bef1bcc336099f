// Package semantic turns enriched movies into structured text, embeds that
// text, and persists the vectors as a compressed artifact.
//
// Text follows a fixed "Title: ... Synopsis: ..." template with the synopsis
// capped at a word limit. Embedders are pluggable: a local feature-hashing
// embedder needs no network, and an HTTP embedder talks to any
// OpenAI-compatible /embeddings endpoint. Artifacts are zstd-compressed JSON
// lines (one header line, then one line per movie) and load into an Index for
// cosine nearest-neighbour lookups.
package semantic
