// Package preflight provides readiness checks for the dataset, output
// directories and external services that reelmeta depends on.
//
// The CLI "reelmeta config validate --check" runs RunAll and prints one
// status line per result. Network checks use a short timeout and a single
// attempt so a misconfigured key surfaces before a multi-hour enrichment.
//
// Checks for features that are not configured are skipped.
package preflight
