package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/textsplitter"

	"docchat/internal/models"
)

const encodingName = "cl100k_base"

// LenFunc measures text length for the splitter. The default counts tokens,
// not characters.
type LenFunc func(string) int

// Chunker splits extracted documents into overlapping token windows with
// recursive descent over paragraph, line, word and character boundaries.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// New builds a chunker with the given window and overlap, both in tokens.
// A nil lenFunc selects the tiktoken-based token counter.
func New(chunkSize, chunkOverlap int, lenFunc LenFunc) (*Chunker, error) {
	if lenFunc == nil {
		tokenLen, err := TokenLenFunc()
		if err != nil {
			return nil, err
		}
		lenFunc = tokenLen
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithLenFunc(lenFunc),
	)
	return &Chunker{splitter: splitter}, nil
}

// TokenLenFunc returns a length function backed by the cl100k_base encoding.
func TokenLenFunc() (LenFunc, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("loading %s tokenizer: %w", encodingName, err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// Split chunks every document, preserving source attribution and assigning a
// per-source sequence index. Identical input always yields identical chunks.
func (c *Chunker) Split(docs []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk
	seq := make(map[string]int)
	for _, doc := range docs {
		parts, err := c.splitter.SplitText(doc.Text)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", doc.Source, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:   part,
				Source: doc.Source,
				Page:   doc.Page,
				Seq:    seq[doc.Source],
			})
			seq[doc.Source]++
		}
	}
	return chunks, nil
}
