// Package http exposes a read-only operations API for a running engine:
// health, model information, the Mermaid graph, session inspection, live
// session event streams and prometheus metrics.
//
// It is not a conversational transport. Turns are driven by the host.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/internal/presentation/graph"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of colloquy.Engine the API reads from.
type Engine interface {
	Model() *domain.Model
	IsShutdown() bool
	Sessions(ctx context.Context) ([]string, error)
	Snapshot(ctx context.Context, id string) (*domain.SessionSnapshot, error)
}

var _ Engine = (*colloquy.Engine)(nil)

// Server serves the operations API.
type Server struct {
	Engine   Engine
	Streams  *StreamManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams sets the StreamManager backing /sessions/{id}/events.
// Register its Hooks on the engine so that events reach subscribers.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithGatherer enables /metrics over g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.Streams == nil {
		server.Streams = NewStreamManager(server.logger)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/graph", server.GetGraph)
	r.Get("/sessions", server.ListSessions)
	r.Get("/sessions/{id}", server.GetSession)
	r.Get("/sessions/{id}/events", server.SubscribeEvents)
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// GetHealth reports whether the engine still accepts events.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	if s.Engine.IsShutdown() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "shutdown"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// InfoResponse is the body of GET /info.
type InfoResponse struct {
	App     string   `json:"app"`
	Version string   `json:"version"`
	Model   string   `json:"model"`
	States  int      `json:"states"`
	Events  int      `json:"events"`
	Imports []string `json:"imports,omitempty"`
}

// GetInfo describes the loaded model.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	model := s.Engine.Model()
	info := InfoResponse{
		App:     "colloquy",
		Version: colloquy.Version,
		Model:   model.Name,
		States:  len(model.States),
		Events:  len(model.Events),
	}
	for _, imp := range model.Imports {
		info.Imports = append(info.Imports, imp.Alias)
	}
	writeJSON(w, http.StatusOK, info)
}

// GetGraph renders the model as Mermaid. With ?session=<id> the current
// state of that session is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		snap, err := s.Engine.Snapshot(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = &graph.Overlay{CurrentState: snap.State}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(s.Engine.Model(), overlay)))
}

// ListSessions returns the known session ids.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession returns the snapshot of one session.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrSessionNotFound) {
		status = http.StatusNotFound
	} else {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
