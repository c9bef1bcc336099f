// Package movielens reads and writes the MovieLens files the tool works with.
//
// movies.csv and links.csv are small enough to load whole; ratings.csv is
// streamed row by row. The enriched table is written with the original
// MovieLens columns followed by the TMDb enrichment columns, and can be read
// back for reporting and semantic text generation.
package movielens
