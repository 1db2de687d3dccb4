package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"ytrag/internal/domain"
	"ytrag/internal/jobs"
	"ytrag/internal/logging"
)

// SearchPort is the query surface the HTTP layer needs from the retrieval
// core.
type SearchPort interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// JobPort starts background indexing operations and reports their status.
type JobPort interface {
	Start(ctx context.Context, videoURL string) string
	Status(id string) (jobs.Operation, error)
}

// Server exposes the indexing and query API over HTTP.
type Server struct {
	router *chi.Mux
	search SearchPort
	jobs   JobPort
	topK   int
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultTopK sets the result count used when a query request does not
// specify one.
func WithDefaultTopK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.topK = k
		}
	}
}

func New(search SearchPort, jobPort JobPort, opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
		search: search,
		jobs:   jobPort,
		topK:   6,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/index_video", s.handleIndexVideo)
	r.Get("/indexing_status/{operationID}", s.handleIndexingStatus)
	r.Post("/query", s.handleQuery)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleIndexVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(r.Context(), w, http.StatusBadRequest, goerr.New("no url provided"))
		return
	}

	opID := s.jobs.Start(r.Context(), req.URL)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"operation_id": opID,
		"message":      "Indexing started",
		"status":       string(jobs.StatusPending),
	})
}

func (s *Server) handleIndexingStatus(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "operationID")
	op, err := s.jobs.Status(opID)
	if err != nil {
		if errors.Is(err, domain.ErrOperationNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, err)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(r.Context(), w, http.StatusBadRequest, goerr.New("no query provided"))
		return
	}
	k := req.K
	if k <= 0 {
		k = s.topK
	}

	results, err := s.search.Search(r.Context(), req.Query, k)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"count":   len(results),
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("writing response failed", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := logging.From(ctx)
	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error("request failed", "status", status, "error", err.Error(), "values", ge.Values())
	} else {
		logger.Error("request failed", "status", status, "error", err.Error())
	}
	writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"status": "error",
	})
}

// accessLogger logs one line per request.
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.Default().Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
