// Package api exposes the corpus-build and question-answering workflows
// over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HelloJC24/BNGCIA/chat"
	"github.com/HelloJC24/BNGCIA/config"
	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/crawler"
	"github.com/HelloJC24/BNGCIA/logger"
)

// Server wires the HTTP surface to the pipeline components, which are
// constructed once at startup and shared across requests.
type Server struct {
	cfg     config.Config
	log     *logger.Logger
	builder *corpus.Builder
	svc     *chat.Service
	store   corpus.Store
	local   corpus.Store
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type buildRequest struct {
	URLs         []string `json:"urls"`
	ForceRebuild bool     `json:"force_rebuild"`
}

type buildResponse struct {
	Message        string    `json:"message"`
	DocumentsCount int       `json:"documents_count"`
	URLsProcessed  int       `json:"urls_processed"`
	Timestamp      time.Time `json:"timestamp"`
}

type askRequest struct {
	Query           string `json:"query"`
	UserID          string `json:"user_id"`
	MaxContextChars int    `json:"max_context_chars"`
	TopK            int    `json:"top_k"`
}

type conversationResponse struct {
	UserID    string         `json:"user_id"`
	Messages  []chat.Message `json:"messages"`
	Count     int            `json:"count"`
	Timestamp time.Time      `json:"timestamp"`
}

type migrateResponse struct {
	Message        string    `json:"message"`
	ChunksMigrated int       `json:"documents_migrated"`
	Timestamp      time.Time `json:"timestamp"`
}

// New builds the server. local is the file-backed corpus used as the source
// for migration; nil disables the migrate endpoint.
func New(cfg config.Config, log *logger.Logger, builder *corpus.Builder, svc *chat.Service, store, local corpus.Store) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{cfg: cfg, log: log, builder: builder, svc: svc, store: store, local: local}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/build", s.handleBuild)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/conversation/", s.handleConversation)
	mux.HandleFunc("/v1/corpus/stats", s.handleCorpusStats)
	mux.HandleFunc("/v1/corpus/migrate", s.handleCorpusMigrate)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	seeds := req.URLs
	if len(seeds) == 0 {
		seeds = s.cfg.SeedURLs
	}

	ctx := r.Context()

	if !req.ForceRebuild {
		existing, err := s.store.Load(ctx)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("check existing corpus: %w", err))
			return
		}
		if len(existing) > 0 {
			stats := corpus.ComputeStats(existing)
			s.writeJSON(w, http.StatusOK, buildResponse{
				Message:        "Corpus already exists. Use force_rebuild=true to rebuild.",
				DocumentsCount: stats.TotalChunks,
				URLsProcessed:  stats.UniqueURLs,
				Timestamp:      time.Now().UTC(),
			})
			return
		}
	}

	s.log.Info("building corpus", "seeds", len(seeds))
	chunks, err := s.builder.Build(ctx, seeds, crawler.Options{
		SameHostOnly: s.cfg.SameHostOnly,
		MaxPages:     s.cfg.MaxPages,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("build corpus: %w", err))
		return
	}
	if len(chunks) == 0 {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("crawl produced no indexable content"))
		return
	}

	stats := corpus.ComputeStats(chunks)
	s.writeJSON(w, http.StatusOK, buildResponse{
		Message:        "Corpus built successfully",
		DocumentsCount: stats.TotalChunks,
		URLsProcessed:  stats.UniqueURLs,
		Timestamp:      time.Now().UTC(),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	resp, err := s.svc.Ask(r.Context(), req.Query, req.UserID, chat.AskOptions{
		TopK:            req.TopK,
		MaxContextChars: req.MaxContextChars,
	})
	if err != nil {
		if errors.Is(err, chat.ErrNoCorpus) {
			s.writeError(w, http.StatusNotFound, fmt.Errorf("no corpus found, build it first via /v1/build"))
			return
		}
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("answer question: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/v1/conversation/")
	if userID == "" || strings.Contains(userID, "/") {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user id missing from path"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
				s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
				return
			}
		}

		messages, err := s.svc.History(r.Context(), userID, limit)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("load conversation: %w", err))
			return
		}
		if messages == nil {
			messages = []chat.Message{}
		}

		s.writeJSON(w, http.StatusOK, conversationResponse{
			UserID:    userID,
			Messages:  messages,
			Count:     len(messages),
			Timestamp: time.Now().UTC(),
		})
	case http.MethodDelete:
		if err := s.svc.ClearHistory(r.Context(), userID); err != nil {
			s.writeError(w, http.StatusInternalServerError, fmt.Errorf("clear conversation: %w", err))
			return
		}
		s.writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("conversation history cleared for %s", userID)})
	default:
		s.methodNotAllowed(w, "GET, DELETE")
	}
}

func (s *Server) handleCorpusStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	chunks, err := s.store.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("load corpus: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, corpus.ComputeStats(chunks))
}

// handleCorpusMigrate copies a locally built corpus file into the live
// backend, for corpora built offline before the server's store existed.
func (s *Server) handleCorpusMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	if s.local == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no local corpus source configured"))
		return
	}

	chunks, err := s.local.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("load local corpus: %w", err))
		return
	}
	if len(chunks) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no local corpus found to migrate"))
		return
	}

	if err := s.store.ReplaceAll(r.Context(), chunks); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("migrate corpus: %w", err))
		return
	}

	s.log.Info("local corpus migrated", "chunks", len(chunks))
	s.writeJSON(w, http.StatusOK, migrateResponse{
		Message:        "Local corpus migrated successfully",
		ChunksMigrated: len(chunks),
		Timestamp:      time.Now().UTC(),
	})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.log.Error("api error", "status", status, "error", err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}
