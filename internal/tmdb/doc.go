// Package tmdb provides the TMDb API client used during enrichment.
//
// It fetches full movie details (credits and keywords appended) in a single
// request and maps the payload onto the enrichment columns. Missing movies
// surface as services.ErrNotFound, throttled requests as *RateLimitError, and
// the Fetcher wraps the client with bounded retries for rate limits and
// transient failures. Options let tests supply custom HTTP clients.
package tmdb
