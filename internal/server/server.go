package server

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tmc/langchaingo/llms"

	"docchat/internal/chat"
	"docchat/internal/config"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
)

// Server exposes the pipeline as a multi-session HTTP API. Every session owns
// its index and transcript; nothing is shared between sessions.
type Server struct {
	cfg      *config.Config
	pipeline *rag.Pipeline
	newModel func(cfg *config.LLMConfig, apiKey string) (llms.Model, error)

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

func New(cfg *config.Config, pipeline *rag.Pipeline) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		newModel: llmservice.NewChatModel,
		sessions: make(map[string]*chat.Session),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Post("/sessions", s.createSessionHandler)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/documents", s.uploadDocumentsHandler)
			r.Post("/messages", s.postMessageHandler)
			r.Get("/transcript", s.getTranscriptHandler)
			r.Delete("/", s.deleteSessionHandler)
		})
	})

	return r
}

func (s *Server) session(id string) *chat.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}
