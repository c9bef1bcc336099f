// Package config loads, normalizes, and validates reelmeta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY. Generated artifact paths default to files inside the MovieLens
// data directory so a single data_dir setting is enough for the common case.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
