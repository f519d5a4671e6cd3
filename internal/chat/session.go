package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"docchat/internal/config"
	"docchat/internal/index"
	"docchat/internal/llmservice"
	"docchat/internal/models"
)

const systemInstruction = "You are a helpful assistant. Use the provided context from the user's documents to answer the query. " +
	"If the answer is not found in the provided context, clearly state that you don't have the information. " +
	"Do not make up information."

// Session is one conversation over one document batch. The transcript is
// append-only and resent in full on every turn; nothing here truncates it, so
// very long conversations are bounded only by the remote model's context
// window.
type Session struct {
	mu         sync.Mutex
	cfg        *config.Config
	model      llms.Model
	idx        *index.Index
	transcript []models.Turn
}

// NewSession binds a chat model to a document index. A nil index is allowed;
// retrieval then yields no context until ReplaceIndex is called.
func NewSession(cfg *config.Config, model llms.Model, idx *index.Index) *Session {
	return &Session{cfg: cfg, model: model, idx: idx}
}

// ReplaceIndex swaps the document index wholesale, as a new upload batch
// replaces the prior one. The transcript is untouched.
func (s *Session) ReplaceIndex(idx *index.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = idx
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Ask retrieves context for the question, sends it with the full prior
// transcript to the chat model, and appends both turns on success. A remote
// failure is returned unretried; the question stays in the transcript without
// a paired answer.
func (s *Session) Ask(ctx context.Context, question string) (models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := make([]models.Turn, len(s.transcript))
	copy(prior, s.transcript)
	s.transcript = append(s.transcript, models.Turn{Role: models.RoleUser, Content: question})

	retrieved, err := s.idx.Search(ctx, question, index.Options{
		TopK:   s.cfg.RAG.TopK,
		FetchK: s.cfg.RAG.FetchK,
		Lambda: *s.cfg.RAG.MMRLambda,
		Mode:   s.cfg.RAG.SearchMode,
	})
	if err != nil {
		return models.Answer{}, fmt.Errorf("retrieving context: %w", err)
	}

	messages := buildMessages(prior, retrieved, question)
	resp, err := llmservice.Generate(ctx, s.model, s.cfg.ChatLLM.Model, messages)
	if err != nil {
		return models.Answer{}, err
	}

	answer := resp.Choices[0].Content
	s.transcript = append(s.transcript, models.Turn{Role: models.RoleAssistant, Content: answer})

	return models.Answer{
		Content: answer,
		Sources: citedSources(retrieved),
	}, nil
}

func buildMessages(prior []models.Turn, retrieved []models.ScoredChunk, question string) []llms.MessageContent {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemInstruction),
	}
	for _, turn := range prior {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}

	var contextText strings.Builder
	for _, sc := range retrieved {
		fmt.Fprintf(&contextText, "[source: %s]\n%s\n\n", sc.Chunk.Source, sc.Chunk.Text)
	}

	final := question
	if contextText.Len() > 0 {
		final = fmt.Sprintf("Context:\n%s\nQuery: %s", contextText.String(), question)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, final))
	return messages
}

// citedSources keeps retrieval rank order, de-duplicating by source label and
// collecting the chunk texts as display excerpts.
func citedSources(retrieved []models.ScoredChunk) []models.CitedSource {
	var sources []models.CitedSource
	byName := make(map[string]int)
	for _, sc := range retrieved {
		if i, ok := byName[sc.Chunk.Source]; ok {
			sources[i].Excerpts = append(sources[i].Excerpts, sc.Chunk.Text)
			continue
		}
		byName[sc.Chunk.Source] = len(sources)
		sources = append(sources, models.CitedSource{
			Name:     sc.Chunk.Source,
			Excerpts: []string{sc.Chunk.Text},
		})
	}
	return sources
}
