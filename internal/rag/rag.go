package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/document"
	"docchat/internal/index"
)

// ErrNoDocuments means an upload batch contained nothing usable. It is
// reported before any embedding work happens.
var ErrNoDocuments = errors.New("no supported documents to process")

// Pipeline turns an upload batch into a searchable index:
// load -> chunk -> embed -> build.
type Pipeline struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	chunker  *chunker.Chunker
}

// NewPipeline wires the chunker and embedder from config. lenFunc overrides
// the token counter, nil selects the default.
func NewPipeline(cfg *config.Config, embedder embeddings.Embedder, lenFunc chunker.LenFunc) (*Pipeline, error) {
	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, lenFunc)
	if err != nil {
		return nil, fmt.Errorf("initializing chunker: %w", err)
	}
	return &Pipeline{cfg: cfg, embedder: embedder, chunker: ch}, nil
}

// Process ingests one upload batch and returns a fresh index for it. The
// caller replaces any prior index with the result; there is no incremental
// update.
func (p *Pipeline) Process(ctx context.Context, files []document.File) (*index.Index, error) {
	docs := document.LoadAll(files)
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	chunks, err := p.chunker.Split(docs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoDocuments
	}

	log.Info().Int("files", len(files)).Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Building vector index")
	return index.Build(ctx, chunks, p.embedder)
}
