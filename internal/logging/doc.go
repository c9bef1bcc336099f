// Package logging builds the slog loggers used by the CLI and the enrichment
// pipeline.
//
// Two formats are supported: a human-oriented console layout that prints a
// header line followed by indented fields, and a JSON layout with compact
// keys (ts, level, msg). Standard field names live in this package so every
// component tags movies, runs, and components the same way.
package logging
