package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/index"
	"docchat/internal/models"
)

type fakeModel struct {
	calls   [][]llms.MessageContent
	opts    []llms.CallOptions
	answers []string
	err     error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls = append(m.calls, messages)
	// Temperature starts at a sentinel so a passed-in 0 is observable.
	folded := llms.CallOptions{Temperature: -1}
	for _, opt := range options {
		opt(&folded)
	}
	m.opts = append(m.opts, folded)
	if m.err != nil {
		return nil, m.err
	}
	answer := "stub answer"
	if len(m.answers) >= len(m.calls) {
		answer = m.answers[len(m.calls)-1]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: answer}},
	}, nil
}

func (m *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func flatten(messages []llms.MessageContent) string {
	var b strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				b.WriteString(text.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

func TestAskTranscriptOrdering(t *testing.T) {
	model := &fakeModel{answers: []string{"first answer", "second answer"}}
	sess := NewSession(config.Default(), model, nil)
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Ask(ctx, "second question"); err != nil {
		t.Fatal(err)
	}

	transcript := sess.Transcript()
	if len(transcript) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(transcript))
	}
	wantRoles := []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}
	for i, want := range wantRoles {
		if transcript[i].Role != want {
			t.Errorf("turn %d: role %q, want %q", i, transcript[i].Role, want)
		}
	}
	if transcript[1].Content != "first answer" || transcript[3].Content != "second answer" {
		t.Errorf("answers not recorded in order: %+v", transcript)
	}
}

func TestAskResendsFullTranscript(t *testing.T) {
	model := &fakeModel{answers: []string{"the first answer"}}
	sess := NewSession(config.Default(), model, nil)
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "the first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Ask(ctx, "the second question"); err != nil {
		t.Fatal(err)
	}

	if len(model.calls) != 2 {
		t.Fatalf("expected 2 remote calls, got %d", len(model.calls))
	}
	secondPrompt := flatten(model.calls[1])
	if !strings.Contains(secondPrompt, "the first question") {
		t.Error("second call is missing the first question")
	}
	if !strings.Contains(secondPrompt, "the first answer") {
		t.Error("second call is missing the first answer")
	}
}

func TestAskFailureLeavesQuestionUnpaired(t *testing.T) {
	model := &fakeModel{err: errors.New("rate limited")}
	sess := NewSession(config.Default(), model, nil)
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "doomed question"); err == nil {
		t.Fatal("expected the remote failure to surface")
	}

	transcript := sess.Transcript()
	if len(transcript) != 1 {
		t.Fatalf("expected 1 turn after a failed ask, got %d", len(transcript))
	}
	if transcript[0].Role != models.RoleUser || transcript[0].Content != "doomed question" {
		t.Errorf("unexpected transcript after failure: %+v", transcript)
	}

	// The session stays usable; the unpaired question remains part of history.
	model.err = nil
	if _, err := sess.Ask(ctx, "second question"); err != nil {
		t.Fatal(err)
	}
	transcript = sess.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(transcript))
	}
	if !strings.Contains(flatten(model.calls[len(model.calls)-1]), "doomed question") {
		t.Error("unpaired question missing from later prompt history")
	}
}

func TestAskIncludesRetrievedContext(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(64)
	idx, err := index.Build(ctx, []models.Chunk{
		{Text: "The capital of France is Paris.", Source: "france.md", Page: 1, Seq: 0},
	}, emb)
	if err != nil {
		t.Fatal(err)
	}

	model := &fakeModel{answers: []string{"Paris."}}
	sess := NewSession(config.Default(), model, idx)

	answer, err := sess.Ask(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}

	prompt := flatten(model.calls[0])
	if !strings.Contains(prompt, "The capital of France is Paris.") {
		t.Errorf("prompt is missing the retrieved chunk verbatim:\n%s", prompt)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Name != "france.md" {
		t.Errorf("expected the source document cited, got %+v", answer.Sources)
	}
}

func TestAskDecodesDeterministically(t *testing.T) {
	model := &fakeModel{answers: []string{"an answer"}}
	sess := NewSession(config.Default(), model, nil)

	if _, err := sess.Ask(context.Background(), "a question"); err != nil {
		t.Fatal(err)
	}
	if len(model.opts) != 1 {
		t.Fatalf("expected 1 remote call, got %d", len(model.opts))
	}
	opts := model.opts[0]
	if opts.Temperature != 0 {
		t.Errorf("temperature must be pinned to 0, got %v", opts.Temperature)
	}
	if opts.Model != "gpt-3.5-turbo" {
		t.Errorf("expected configured model id in the call, got %q", opts.Model)
	}
}

func TestCitedSourcesDeduplicated(t *testing.T) {
	retrieved := []models.ScoredChunk{
		{Chunk: models.Chunk{Text: "chunk one", Source: "a.pdf"}, Score: 0.9},
		{Chunk: models.Chunk{Text: "chunk two", Source: "b.csv"}, Score: 0.8},
		{Chunk: models.Chunk{Text: "chunk three", Source: "a.pdf"}, Score: 0.7},
	}
	sources := citedSources(retrieved)
	if len(sources) != 2 {
		t.Fatalf("expected 2 distinct sources, got %d", len(sources))
	}
	if sources[0].Name != "a.pdf" || sources[1].Name != "b.csv" {
		t.Errorf("sources not in rank order: %+v", sources)
	}
	if len(sources[0].Excerpts) != 2 {
		t.Errorf("expected both a.pdf excerpts kept, got %v", sources[0].Excerpts)
	}
}

func TestReplaceIndexKeepsTranscript(t *testing.T) {
	model := &fakeModel{}
	sess := NewSession(config.Default(), model, nil)
	ctx := context.Background()

	if _, err := sess.Ask(ctx, "before replace"); err != nil {
		t.Fatal(err)
	}

	emb := embedding.NewHashEmbedder(64)
	idx, err := index.Build(ctx, []models.Chunk{{Text: "new batch", Source: "n.md"}}, emb)
	if err != nil {
		t.Fatal(err)
	}
	sess.ReplaceIndex(idx)

	if got := len(sess.Transcript()); got != 2 {
		t.Errorf("transcript should survive index replacement, got %d turns", got)
	}
}
