package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docchat/internal/config"
	"docchat/internal/document"
	"docchat/internal/embedding"
	"docchat/internal/index"
)

func wordLen(s string) int { return len(strings.Fields(s)) }

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(config.Default(), embedding.NewHashEmbedder(64), wordLen)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProcessBuildsSearchableIndex(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)

	files := []document.File{{
		Name: "france.md",
		MIME: document.MIMEMarkdown,
		Data: []byte("The capital of France is Paris.\n"),
	}}
	idx, err := p.Process(ctx, files)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Fatalf("expected 1 chunk indexed, got %d", idx.Size())
	}

	results, err := idx.Search(ctx, "What is the capital of France?", index.Options{TopK: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the single chunk retrieved, got %d results", len(results))
	}
	if results[0].Chunk.Source != "france.md" {
		t.Errorf("expected source 'france.md', got %q", results[0].Chunk.Source)
	}
	if !strings.Contains(results[0].Chunk.Text, "The capital of France is Paris.") {
		t.Errorf("retrieved chunk missing sentence: %q", results[0].Chunk.Text)
	}
}

func TestProcessNoSupportedDocuments(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)

	files := []document.File{{Name: "photo.png", MIME: "image/png", Data: []byte{0x89}}}
	if _, err := p.Process(ctx, files); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", err)
	}

	if _, err := p.Process(ctx, nil); !errors.Is(err, ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments for empty batch, got %v", err)
	}
}

func TestProcessReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t)

	first, err := p.Process(ctx, []document.File{{
		Name: "a.csv", MIME: document.MIMECSV, Data: []byte("city\nParis\n"),
	}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Process(ctx, []document.File{{
		Name: "b.csv", MIME: document.MIMECSV, Data: []byte("city\nBerlin\n"),
	}})
	if err != nil {
		t.Fatal(err)
	}

	// Each batch yields an independent index; the second doesn't see the first.
	results, err := second.Search(ctx, "Paris", index.Options{TopK: 4})
	if err != nil {
		t.Fatal(err)
	}
	for _, res := range results {
		if res.Chunk.Source == "a.csv" {
			t.Errorf("second index leaked chunks from the first batch")
		}
	}
	if first.Size() != 1 || second.Size() != 1 {
		t.Errorf("unexpected sizes: first %d, second %d", first.Size(), second.Size())
	}
}
