package llmservice

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
)

// Recorder scopes metrics around one remote call: started before the call,
// finalized exactly once on every exit path.
type Recorder struct {
	model    string
	start    time.Time
	finished bool
}

func StartRecorder(model string) *Recorder {
	return &Recorder{model: model, start: time.Now()}
}

// Finish records elapsed time and, when the response carries them, token
// counts. Calling it more than once is a no-op.
func (r *Recorder) Finish(resp *llms.ContentResponse, err error) {
	if r == nil || r.finished {
		return
	}
	r.finished = true

	elapsed := time.Since(r.start)
	if err != nil {
		log.Warn().Err(err).Str("model", r.model).Dur("elapsed", elapsed).Msg("Chat completion failed")
		return
	}

	evt := log.Debug().Str("model", r.model).Dur("elapsed", elapsed)
	if resp != nil && len(resp.Choices) > 0 {
		info := resp.Choices[0].GenerationInfo
		evt = evt.
			Int("prompt_tokens", intFromInfo(info, "PromptTokens")).
			Int("completion_tokens", intFromInfo(info, "CompletionTokens")).
			Int("total_tokens", intFromInfo(info, "TotalTokens"))
	}
	evt.Msg("Chat completion finished")
}

func intFromInfo(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	if v, ok := info[key].(int); ok {
		return v
	}
	return 0
}
