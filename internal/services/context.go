package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	movieIDKey   contextKey = "movie_id"
	componentKey contextKey = "component"
)

// WithRunID annotates context with the enrichment run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithMovieID annotates context with the MovieLens movie identifier.
func WithMovieID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, movieIDKey, id)
}

// MovieIDFromContext extracts the MovieLens movie identifier if present.
func MovieIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(movieIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithComponent annotates context with the component doing the work.
func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, componentKey, component)
}

// ComponentFromContext returns the component name if present.
func ComponentFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(componentKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
