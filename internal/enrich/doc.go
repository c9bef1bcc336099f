// Package enrich runs the batch TMDb enrichment of the MovieLens movie table.
//
// A Pipeline loads movies.csv and links.csv, resumes from the SQLite
// checkpoint, fans pending movies out to a worker pool sharing one token
// bucket, and periodically rewrites the output CSV so partial results survive
// interruption. When every movie has an outcome it writes the final table,
// drops the checkpoint, and reports feature coverage.
package enrich
