// Package server exposes the retrieval pipeline over a thin HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qanoonhub/lawrag/internal/auth"
	"github.com/qanoonhub/lawrag/internal/retrieval"
	"github.com/qanoonhub/lawrag/internal/vectorstore"
)

// Retriever is the slice of the retrieval pipeline the server needs.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string, topK, searchK int) ([]retrieval.GroupedResult, error)
}

// HTTPServer serves the search API.
type HTTPServer struct {
	server     *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	retriever  Retriever
	categories []string
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port       int
	APIKey     string
	Logger     *slog.Logger
	Retriever  Retriever
	Categories []string // distinct corpus categories, served as-is
}

// NewHTTPServer creates the HTTP server and mounts all routes.
func NewHTTPServer(cfg HTTPServerConfig) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		logger:     logger,
		retriever:  cfg.Retriever,
		categories: cfg.Categories,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", readinessCheckHandler())

	router.Route("/v1", func(r chi.Router) {
		r.Use(auth.APIKey(cfg.APIKey))
		r.Post("/search", s.handleSearch)
		r.Get("/categories", s.handleCategories)
	})

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// searchRequest is the body of POST /v1/search.
type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
	SearchK  int    `json:"search_k,omitempty"`
}

// searchResult is one grouped article in the search response.
type searchResult struct {
	Rank       int     `json:"rank"`
	Score      float32 `json:"score"`
	GroupCount int     `json:"group_count"`
	Payload    any     `json:"payload"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	TookMs  int64          `json:"took_ms"`
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	grouped, err := s.retriever.Retrieve(r.Context(), req.Query, req.Category, req.TopK, req.SearchK)
	if err != nil {
		switch {
		case errors.Is(err, vectorstore.ErrCollectionMissing):
			writeError(w, http.StatusConflict, "collection does not exist; run ingestion first")
		case errors.Is(err, vectorstore.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "vector store unavailable")
		default:
			s.logger.Error("search failed", "error", err)
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}

	results := make([]searchResult, len(grouped))
	for i, g := range grouped {
		results[i] = searchResult{
			Rank:       i + 1,
			Score:      g.Score,
			GroupCount: g.Count,
			Payload:    g.Payload,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Results: results,
		TookMs:  time.Since(start).Milliseconds(),
	})
}

func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.categories,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// readinessCheckHandler returns a handler for the /readyz endpoint
func readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
