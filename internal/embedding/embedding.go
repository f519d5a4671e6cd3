package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
)

// NewEmbedder builds the configured embedding client wrapped so that every
// returned vector has unit norm.
func NewEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	var (
		inner embeddings.Embedder
		err   error
	)
	switch cfg.Provider {
	case "", "ollama":
		inner, err = newOllamaEmbedder(cfg)
	case "openai":
		inner, err = newOpenAIEmbedder(cfg)
	case "hash":
		// local word-hashing embedder, test and offline use only
		return NewHashEmbedder(0), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Normalized{inner: inner}, nil
}

// newOllamaEmbedder talks to a locally running model server, no remote call.
func newOllamaEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing ollama embedder: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

func newOpenAIEmbedder(cfg *config.LLMConfig) (embeddings.Embedder, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, fmt.Errorf("openai embedding provider requires a key")
	}
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing openai embedder: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

// Normalized guarantees unit-norm vectors so cosine similarity reduces to a
// dot product downstream.
type Normalized struct {
	inner embeddings.Embedder
}

func (n Normalized) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		L2Normalize(v)
	}
	return vectors, nil
}

func (n Normalized) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := n.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	L2Normalize(vector)
	return vector, nil
}

// L2Normalize scales v to unit length in place. The zero vector is left as is.
func L2Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
