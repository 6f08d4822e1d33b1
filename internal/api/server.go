// Package api provides the REST API for ingesting values and querying
// counter reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fidde/streamcount/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the REST API server.
type Server struct {
	store  storage.Storage
	router *chi.Mux
	server *http.Server
}

// ObserveRequest is the ingest payload: a batch of values for one counter.
type ObserveRequest struct {
	Values []string `json:"values"`
}

// ObserveResponse acknowledges an ingest batch.
type ObserveResponse struct {
	Counter  string `json:"counter"`
	Accepted int    `json:"accepted"`
}

// NewServer creates a new API server.
func NewServer(addr string, store storage.Storage) *Server {
	s := &Server{
		store:  store,
		router: chi.NewRouter(),
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)

		r.Post("/counters/{name}/values", s.observeValues)
		r.Get("/counters", s.listCounters)
		r.Get("/counters/{name}", s.getCounter)

		r.Post("/admin/clear", s.clearAllData)
	})

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	return s
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// observeValues ingests a batch of values for one counter.
func (s *Server) observeValues(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req ObserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values must not be empty")
		return
	}

	if err := s.store.Observe(r.Context(), name, req.Values); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, ObserveResponse{
		Counter:  name,
		Accepted: len(req.Values),
	})
}

// getCounter returns the report for one counter. An optional ?actual=N
// query parameter adds the signed error percentage against a known ground
// truth.
func (s *Server) getCounter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var actual *uint64
	if actualStr := r.URL.Query().Get("actual"); actualStr != "" {
		parsed, err := strconv.ParseUint(actualStr, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "actual must be a non-negative integer")
			return
		}
		actual = &parsed
	}

	report, err := s.store.GetCounter(r.Context(), name, actual)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "counter not found: "+name)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// listCounters returns reports for all counters.
func (s *Server) listCounters(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListCounters(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters": reports,
		"total":    len(reports),
	})
}

// clearAllData removes all counters.
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
