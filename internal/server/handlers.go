package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docchat/internal/chat"
	"docchat/internal/document"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
)

const maxUploadBytes = 64 << 20

type createSessionRequest struct {
	APIKey string `json:"api_key"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// createSessionHandler validates the credential before anything else; a
// missing or blank key means no session exists at all.
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		// An empty body is fine when the key comes from the header.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	key := req.APIKey
	if key == "" {
		key = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	model, err := s.newModel(&s.cfg.ChatLLM, key)
	if err != nil {
		if errors.Is(err, llmservice.ErrMissingCredential) {
			http.Error(w, "API key is required", http.StatusUnauthorized)
			return
		}
		log.Error().Err(err).Msg("Failed to create chat model")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	sess := chat.NewSession(s.cfg, model, nil)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

type uploadResponse struct {
	Chunks int `json:"chunks"`
}

// uploadDocumentsHandler processes one multipart batch and replaces the
// session's index wholesale with the result.
func (s *Server) uploadDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart request: "+err.Error(), http.StatusBadRequest)
		return
	}

	var files []document.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			http.Error(w, "Failed to open uploaded file "+header.Filename, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "Failed to read uploaded file "+header.Filename, http.StatusBadRequest)
			return
		}
		files = append(files, document.File{
			Name: header.Filename,
			MIME: header.Header.Get("Content-Type"),
			Data: data,
		})
	}
	if len(files) == 0 {
		http.Error(w, "Please upload at least one document", http.StatusBadRequest)
		return
	}

	idx, err := s.pipeline.Process(r.Context(), files)
	if err != nil {
		if errors.Is(err, rag.ErrNoDocuments) {
			http.Error(w, "No supported documents in upload", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Failed to process upload batch")
		http.Error(w, "Failed to process documents", http.StatusBadGateway)
		return
	}

	sess.ReplaceIndex(idx)
	writeJSON(w, http.StatusOK, uploadResponse{Chunks: idx.Size()})
}

type postMessageRequest struct {
	Question string `json:"question"`
}

type sourcePayload struct {
	Name     string   `json:"name"`
	Excerpts []string `json:"excerpts"`
}

type postMessageResponse struct {
	Answer  string          `json:"answer"`
	Sources []sourcePayload `json:"sources"`
}

func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	answer, err := sess.Ask(r.Context(), req.Question)
	if err != nil {
		log.Error().Err(err).Msg("Chat turn failed")
		http.Error(w, "Failed to answer question", http.StatusBadGateway)
		return
	}

	resp := postMessageResponse{Answer: answer.Content, Sources: []sourcePayload{}}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, sourcePayload{Name: src.Name, Excerpts: src.Excerpts})
	}
	writeJSON(w, http.StatusOK, resp)
}

type turnPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) getTranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	transcript := sess.Transcript()
	payload := make([]turnPayload, 0, len(transcript))
	for _, turn := range transcript {
		payload = append(payload, turnPayload{Role: string(turn.Role), Content: turn.Content})
	}
	writeJSON(w, http.StatusOK, map[string][]turnPayload{"transcript": payload})
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}
