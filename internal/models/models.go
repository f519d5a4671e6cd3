package models

// Document is a single extracted unit of source text before chunking. PDF
// pages, PPTX slides and spreadsheet sheets each arrive as their own Document.
type Document struct {
	Text   string
	Source string
	Page   int
}

// Chunk is the unit of retrieval: a bounded span of text tagged with its
// origin. Chunks are immutable once created and owned by the index.
type Chunk struct {
	Text   string
	Source string
	Page   int
	Seq    int
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session transcript.
type Turn struct {
	Role    Role
	Content string
}

// ScoredChunk pairs a retrieved chunk with its relevance score, higher is
// more relevant.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// CitedSource is one source document referenced by an answer, with the
// retrieved chunk texts kept for display.
type CitedSource struct {
	Name     string
	Excerpts []string
}

// Answer is the result of a single conversation turn.
type Answer struct {
	Content string
	Sources []CitedSource
}
