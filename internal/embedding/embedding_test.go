package embedding

import (
	"context"
	"math"
	"testing"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	ctx := context.Background()
	emb := NewHashEmbedder(64)

	a, err := emb.EmbedQuery(ctx, "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	b, err := emb.EmbedQuery(ctx, "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 || len(b) != 64 {
		t.Fatalf("expected dimension 64, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestHashEmbedderUnitNorm(t *testing.T) {
	ctx := context.Background()
	emb := NewHashEmbedder(32)

	vectors, err := emb.EmbedDocuments(ctx, []string{"one two three", "completely different words here"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vectors {
		if n := norm(v); math.Abs(n-1.0) > 1e-5 {
			t.Errorf("vector %d has norm %f, want 1", i, n)
		}
	}
}

func TestL2NormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	L2Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %f", i, x)
		}
	}
}

func TestNormalizedWrapper(t *testing.T) {
	ctx := context.Background()
	// HashEmbedder already normalizes; wrapping must keep vectors unit norm.
	wrapped := Normalized{inner: NewHashEmbedder(16)}
	v, err := wrapped.EmbedQuery(ctx, "some words to embed")
	if err != nil {
		t.Fatal(err)
	}
	if n := norm(v); math.Abs(n-1.0) > 1e-5 {
		t.Errorf("norm %f, want 1", n)
	}
}
