package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Options select how many chunks a search returns and how they are ranked.
// Lambda 0 means pure diversity in MMR mode; pass a negative value to get
// the default balance.
type Options struct {
	TopK   int
	FetchK int
	Lambda float32
	Mode   string
}

// Index is a session-scoped vector index over one upload batch. It is built
// once; a new batch gets a new Index that replaces the old one wholesale.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	dimension  int
	size       int
}

// Build embeds all chunks and stores them in a fresh in-memory collection.
// All vectors must come out with the same dimensionality.
func Build(ctx context.Context, chunks []models.Chunk, embedder embeddings.Embedder) (*Index, error) {
	db := chromem.NewDB()
	embedFunc := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	})
	collection, err := db.CreateCollection("session-"+uuid.NewString(), nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	idx := &Index{
		db:         db,
		collection: collection,
		embedder:   embedder,
	}
	if len(chunks) == 0 {
		return idx, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dimension := len(vectors[0])
	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dimension {
			return nil, fmt.Errorf("mixed embedding dimensions: got %d and %d", dimension, len(vectors[i]))
		}
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s-%d-%d", chunk.Source, chunk.Page, chunk.Seq),
			Content: chunk.Text,
			Metadata: map[string]string{
				"source": chunk.Source,
				"page":   strconv.Itoa(chunk.Page),
				"seq":    strconv.Itoa(chunk.Seq),
			},
			Embedding: vectors[i],
		}
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("adding documents to collection: %w", err)
	}

	idx.dimension = dimension
	idx.size = len(docs)
	return idx, nil
}

// Size reports the number of stored chunks. Safe on a nil index.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.size
}

// Dimension reports the embedding dimensionality, 0 for an empty index.
func (idx *Index) Dimension() int {
	if idx == nil {
		return 0
	}
	return idx.dimension
}

// Search embeds the query with the same embedder the index was built with and
// returns the top-k chunks, highest relevance first. A nil or empty index
// yields an empty result, never an error.
func (idx *Index) Search(ctx context.Context, query string, opts Options) ([]models.ScoredChunk, error) {
	if idx.Size() == 0 {
		return nil, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	if topK > idx.size {
		topK = idx.size
	}

	queryVec, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	fetchK := topK
	if opts.Mode == config.SearchModeMMR {
		fetchK = opts.FetchK
		if fetchK < topK {
			fetchK = config.DefaultFetchK
		}
		if fetchK < topK {
			fetchK = topK
		}
		if fetchK > idx.size {
			fetchK = idx.size
		}
	}

	results, err := idx.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryVec,
		NResults:       fetchK,
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	if opts.Mode == config.SearchModeMMR {
		// lambda 0 is a valid setting (pure diversity); only a negative
		// value means unset.
		lambda := opts.Lambda
		if lambda < 0 {
			lambda = config.DefaultMMRLambda
		}
		results = mmrSelect(results, topK, lambda)
	} else if len(results) > topK {
		results = results[:topK]
	}

	scored := make([]models.ScoredChunk, 0, len(results))
	for _, res := range results {
		scored = append(scored, models.ScoredChunk{
			Chunk: resultChunk(res),
			Score: res.Similarity,
		})
	}
	return scored, nil
}

// ImportSnapshot restores an exported collection from path into a fresh
// index. The embedder must be the one the snapshot was built with; queries
// are embedded with it at search time.
func ImportSnapshot(path, encryptionKey string, embedder embeddings.Embedder) (*Index, error) {
	if encryptionKey == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, encryptionKey); err != nil {
		return nil, fmt.Errorf("importing snapshot: %w", err)
	}

	collections := db.ListCollections()
	if len(collections) == 0 {
		return nil, fmt.Errorf("snapshot %s holds no collection", path)
	}
	var collection *chromem.Collection
	for _, c := range collections {
		collection = c
		break
	}

	return &Index{
		db:         db,
		collection: collection,
		embedder:   embedder,
		size:       collection.Count(),
	}, nil
}

// Export writes the collection to an encrypted snapshot file.
func (idx *Index) Export(path, encryptionKey string) error {
	if idx == nil || idx.collection == nil {
		return fmt.Errorf("no collection to export")
	}
	if encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if err := idx.db.ExportToFile(path, false, encryptionKey, idx.collection.Name); err != nil {
		return fmt.Errorf("exporting collection: %w", err)
	}
	return nil
}

func resultChunk(res chromem.Result) models.Chunk {
	page, _ := strconv.Atoi(res.Metadata["page"])
	seq, _ := strconv.Atoi(res.Metadata["seq"])
	return models.Chunk{
		Text:   res.Content,
		Source: res.Metadata["source"],
		Page:   page,
		Seq:    seq,
	}
}

// mmrSelect re-ranks candidates by maximal marginal relevance: relevance to
// the query balanced against redundancy with already-selected results.
func mmrSelect(candidates []chromem.Result, k int, lambda float32) []chromem.Result {
	if k > len(candidates) {
		k = len(candidates)
	}
	selected := make([]chromem.Result, 0, k)
	remaining := append([]chromem.Result(nil), candidates...)

	for len(selected) < k && len(remaining) > 0 {
		best := 0
		bestScore := float32(-2)
		for i, cand := range remaining {
			var redundancy float32
			for _, s := range selected {
				if sim := dot(cand.Embedding, s.Embedding); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*cand.Similarity - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

// dot assumes unit-norm vectors, making this cosine similarity.
func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
