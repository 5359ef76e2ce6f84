// Package server exposes the planner over HTTP.
//
//	POST /query   {"query": "..."}  -> 200 {"answer": "..."}
//	                                  -> 4xx/5xx {"detail": "..."}
//	GET  /health                    -> 200 {"status": "ok"}
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/logging"
)

// Planner answers one query.
type Planner interface {
	Ask(ctx context.Context, query string) (string, error)
}

// Options configures the handler.
type Options struct {
	// AllowOrigin is sent as Access-Control-Allow-Origin.
	AllowOrigin string
	// MaxBodyBytes caps the request body.
	MaxBodyBytes int64
	Logger       logging.Logger
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query *string `json:"query"`
}

// QueryResponse is the success body of POST /query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Server is the HTTP surface of the service.
type Server struct {
	planner Planner
	opts    Options
	mux     *http.ServeMux
}

// New creates the server and registers its routes.
func New(planner Planner, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowOrigin:  "*",
		MaxBodyBytes: 1 << 20,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{planner: planner, opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /query", s.handleQuery)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s
}

// ServeHTTP implements http.Handler with CORS applied to every route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", s.opts.AllowOrigin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if s.opts.AllowOrigin != "*" {
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req QueryRequest

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusUnprocessableEntity, "request body must be a JSON object with a \"query\" field")
			return
		}

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}

		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())

		return
	}

	if req.Query == nil || strings.TrimSpace(*req.Query) == "" {
		writeError(w, http.StatusUnprocessableEntity, "field \"query\" is required")
		return
	}

	s.opts.Logger.Info("http.query.received", "query_chars", len(*req.Query))

	answer, err := s.planner.Ask(r.Context(), *req.Query)
	if err != nil {
		e := tripmesh.ToError(err)

		s.opts.Logger.Error("http.query.failed", "status", e.Status, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		writeError(w, e.Status, e.Message)

		return
	}

	s.opts.Logger.Info("http.query.completed", "duration_ms", time.Since(start).Milliseconds())
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
