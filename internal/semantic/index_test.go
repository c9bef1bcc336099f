package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelmeta/internal/services"
)

func buildIndex(t *testing.T) *Index {
	t.Helper()
	a, err := Build(context.Background(), sampleRows(), NewHashingEmbedder(256), BuildOptions{})
	require.NoError(t, err)
	idx, err := NewIndex(a.Records)
	require.NoError(t, err)
	return idx
}

func TestIndexSimilarExcludesQueryMovie(t *testing.T) {
	idx := buildIndex(t)
	matches, err := idx.Similar(1, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(3114), matches[0].Record.MovieID)
	for _, m := range matches {
		assert.NotEqual(t, int64(1), m.Record.MovieID)
	}
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestIndexSimilarUnknownMovie(t *testing.T) {
	_, err := buildIndex(t).Similar(999, 3)
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestIndexQuery(t *testing.T) {
	idx := buildIndex(t)
	rec, ok := idx.Get(2)
	require.True(t, ok)
	scaled := make([]float32, len(rec.Embedding))
	for i, v := range rec.Embedding {
		scaled[i] = v * 3
	}
	matches, err := idx.Query(scaled, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(2), matches[0].Record.MovieID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-5)

	_, err = idx.Query([]float32{1}, 1)
	assert.ErrorIs(t, err, services.ErrValidation)
	_, err = idx.Query(make([]float32, 256), 1)
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestIndexFindByTitle(t *testing.T) {
	idx := buildIndex(t)
	found := idx.FindByTitle("TOY STORY")
	require.Len(t, found, 2)
	assert.Equal(t, int64(1), found[0].MovieID)
	assert.Equal(t, int64(3114), found[1].MovieID)

	assert.Empty(t, idx.FindByTitle("   "))
	assert.Empty(t, idx.FindByTitle("casablanca"))
}

func TestNewIndexRejectsMixedDimensions(t *testing.T) {
	_, err := NewIndex([]Record{{MovieID: 1, Embedding: []float32{1, 0}}, {MovieID: 2, Embedding: []float32{1}}})
	assert.Error(t, err)
}
