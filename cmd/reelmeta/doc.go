// Command reelmeta enriches the MovieLens movie table with TMDb metadata and
// builds the semantic-embedding artifact consumed by the analysis notebooks.
//
// Typical flow:
//
//	reelmeta config init
//	reelmeta enrich --data-dir ml-32m
//	reelmeta stats
//	reelmeta semantic build --ratings
//	reelmeta similar "Toy Story"
//
// Enrichment is resumable: interrupting a run leaves a SQLite checkpoint next
// to the output and the next run continues from it.
package main
