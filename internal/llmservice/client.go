package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
)

// ErrMissingCredential means no API key was supplied. Session construction
// must fail on it before anything else happens.
var ErrMissingCredential = errors.New("chat model credential is missing")

// NewChatModel builds the remote chat-completion client. The user-supplied
// key takes precedence over the configured one; an empty key is rejected up
// front so no partially usable session exists.
func NewChatModel(cfg *config.LLMConfig, apiKey string) (llms.Model, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(cfg.Key)
	}
	if key == "" {
		return nil, ErrMissingCredential
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing chat model: %w", err)
	}
	return llm, nil
}

// Generate performs one chat completion with deterministic decoding. Call
// metrics are recorded on every exit path, including failures.
func Generate(ctx context.Context, model llms.Model, modelName string, messages []llms.MessageContent) (resp *llms.ContentResponse, err error) {
	rec := StartRecorder(modelName)
	defer func() { rec.Finish(resp, err) }()

	resp, err = model.GenerateContent(ctx, messages,
		llms.WithModel(modelName),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	return resp, nil
}
