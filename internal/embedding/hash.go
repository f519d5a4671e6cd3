package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

const defaultHashDimension = 256

// HashEmbedder is a deterministic, fully local embedder that hashes words
// into a fixed number of buckets. It is no substitute for a sentence
// embedding model, but it needs no model server, which makes it useful for
// tests and offline development.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dimension int) HashEmbedder {
	if dimension <= 0 {
		dimension = defaultHashDimension
	}
	return HashEmbedder{dim: dimension}
}

func (e HashEmbedder) Dimension() int { return e.dim }

func (e HashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e HashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dim)]++
	}
	L2Normalize(vec)
	return vec
}
