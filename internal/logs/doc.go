// Package logs reads back the run log written when logging.file is enabled.
//
// Tail returns the last N lines with bounded memory and the byte offset to
// resume from; Follow polls from that offset until the context ends. Parse
// groups console continuation lines with their header so a Filter can select
// whole entries by level, component, movie or run id. JSON lines are decoded
// directly.
package logs
