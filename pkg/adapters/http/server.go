// Package http exposes machine conversations over a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/moore"
	"github.com/aretw0/moore/internal/input"
	"github.com/aretw0/moore/internal/logging"
	"github.com/aretw0/moore/pkg/domain"
	"github.com/aretw0/moore/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves the conversations of a session.Manager.
type Server struct {
	Sessions   *session.Manager
	Definition moore.Definition
	Streams    *StreamManager

	maxInput int
	logger   *slog.Logger
	mounts   map[string]http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithDefinition sets the graph returned by GET /machine.
func WithDefinition(def moore.Definition) Option {
	return func(s *Server) {
		s.Definition = def
	}
}

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize overrides the input size limit.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithMount serves h under pattern, e.g. "/metrics".
func WithMount(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.mounts[pattern] = h
	}
}

type turnRequest struct {
	Input string `json:"input"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler.
func NewHandler(sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		Sessions: sessions,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		mounts:   make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/machine", s.GetMachine)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.CreateSession)
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/turns", s.RunTurn)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	for pattern, h := range s.mounts {
		r.Handle(pattern, h)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.Sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.Sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": s.Sessions.List()})
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunTurn handles POST /sessions/{id}/turns.
func (s *Server) RunTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body turnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		s.logger.Warn("RunTurn: Invalid request body", "err", err)
		return
	}

	clean, err := input.Sanitize(body.Input, s.maxInput)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid input: %v", err)})
		s.logger.Warn("RunTurn: Input rejected", "err", err, "size", len(body.Input))
		return
	}

	res, err := s.Sessions.Run(r.Context(), id, clean)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if msg, err := json.Marshal(res); err == nil {
		s.Streams.Broadcast(id, string(msg))
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetMachine handles GET /machine.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Definition)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "moore-http",
		"version": strings.TrimSpace(moore.Version),
		"machine": s.Definition.Name,
	})
}

// StatusFor maps a turn or session error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMachineCompleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrHandler):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
