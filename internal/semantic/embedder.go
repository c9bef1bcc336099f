package semantic

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/hupe1980/vecgo/distance"

	"reelmeta/internal/config"
	"reelmeta/internal/services"
)

// Embedder maps texts to fixed-size vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// NewEmbedder builds the embedder selected by semantic.embedder.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	sem := cfg.Semantic
	switch strings.ToLower(strings.TrimSpace(sem.Embedder)) {
	case "", "hashing":
		return NewHashingEmbedder(sem.Dimensions), nil
	case "http":
		return NewHTTPEmbedder(HTTPConfig{
			APIKey:         sem.APIKey,
			BaseURL:        sem.BaseURL,
			Model:          sem.Model,
			Dimensions:     sem.Dimensions,
			TimeoutSeconds: sem.TimeoutSeconds,
		})
	default:
		return nil, services.Wrap(services.ErrConfiguration, "semantic", "embedder",
			fmt.Sprintf("unknown embedder %q", sem.Embedder), nil)
	}
}

// HashingEmbedder embeds text locally by hashing lowercase word unigrams and
// bigrams into a fixed number of buckets with signed counts, then
// L2-normalizing. Identical texts always map to identical vectors.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns a hashing embedder with dims buckets.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashingEmbedder{dims: dims}
}

func (h *HashingEmbedder) Dimensions() int { return h.dims }

func (h *HashingEmbedder) Name() string { return "hashing" }

func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *HashingEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)
	tokens := tokenize(text)
	for i, token := range tokens {
		h.add(vec, token)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+token)
		}
	}
	distance.NormalizeL2InPlace(vec)
	return vec
}

func (h *HashingEmbedder) add(vec []float32, feature string) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	bucket := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
