// Package httpserver exposes the gateway's agent registry and A2A
// JSON-RPC handlers over HTTP, per spec.md §6.
package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/registry"
)

// wellKnownAgentCardPath mirrors a2asrv.WellKnownAgentCardPath; the
// gateway's server-level well-known route intentionally does NOT
// reuse the SDK's default-agent-card behavior (spec.md §6 wants a 404
// with discovery guidance here, not "serve the first agent").
const wellKnownAgentCardPath = "/.well-known/agent-card.json"

// AgentRuntime bundles the per-agent pieces needed to wire an A2A
// JSON-RPC endpoint: the executor that runs the translation and the
// task store backing it.
type AgentRuntime struct {
	Executor  a2asrv.AgentExecutor
	TaskStore a2asrv.TaskStore
}

// Server is the gateway's HTTP surface: discovery, health, and one
// JSON-RPC endpoint per configured agent.
type Server struct {
	registry *registry.AgentRegistry
	logger   *slog.Logger
	mux      *chi.Mux
	rpc      map[string]http.Handler
	started  time.Time
}

// New builds the router. runtimes must contain one entry per agent
// held in reg, keyed by agent id; New returns an error if any agent
// lacks a runtime.
func New(reg *registry.AgentRegistry, runtimes map[string]AgentRuntime, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: reg,
		logger:   logger,
		rpc:      make(map[string]http.Handler, len(runtimes)),
		started:  timeNow(),
	}

	for _, d := range reg.List() {
		rt, ok := runtimes[d.ID]
		if !ok {
			return nil, fmt.Errorf("httpserver: no runtime provided for agent %q", d.ID)
		}
		handlerOpts := []a2asrv.RequestHandlerOption{}
		if rt.TaskStore != nil {
			handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(rt.TaskStore))
		}
		requestHandler := a2asrv.NewHandler(rt.Executor, handlerOpts...)
		s.rpc[d.ID] = a2asrv.NewJSONRPCHandler(requestHandler)
	}

	s.mux = s.buildRouter()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/.well-known/agents.json", s.handleListCards)
	r.Get("/agents", s.handleListCards)
	r.Get("/health", s.handleHealth)
	r.Get(wellKnownAgentCardPath, s.handleNoDefaultCard)

	r.Route("/agents/{id}", func(r chi.Router) {
		r.Get("/.well-known/agent-card.json", s.handleAgentCard)
		r.Post("/", s.handleAgentRPC)
		r.Post("/*", s.handleAgentRPC)
	})

	return r
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Cards())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"agents":    s.registry.Count(),
		"timestamp": timeNow().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, ok := s.registry.Card(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundBody(id))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleAgentRPC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	handler, ok := s.rpc[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundBody(id))
		return
	}
	handler.ServeHTTP(w, r)
}

// handleNoDefaultCard answers the server-level well-known path. This
// gateway exposes many agents behind distinct ids with no natural
// "default" one, so — unlike a single-agent A2A server — it returns
// guidance toward the multi-agent discovery endpoint instead of
// picking an arbitrary agent's card.
func (s *Server) handleNoDefaultCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "this gateway serves multiple agents; there is no single default agent card",
		"guidance": "GET /.well-known/agents.json for the full list, or GET /agents/:id/.well-known/agent-card.json for one agent",
	})
}

func notFoundBody(id string) map[string]any {
	return map[string]any{"error": "unknown agent", "id": id}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// timeNow is a seam so tests can't be broken by real wall-clock
// output in the health payload's format, while production code still
// calls time.Now().
var timeNow = time.Now

// requestIDMiddleware stamps each request with a correlation id
// surfaced in logs and echoed back on the response, the one genuine
// use of google/uuid in the gateway's request path.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests without wrapping ResponseWriter, so
// it doesn't break http.Flusher for any streaming response the
// underlying a2a-go JSON-RPC handler writes.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := timeNow()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get("X-Request-Id"),
			"duration", timeNow().Sub(start),
		)
	})
}

// corsMiddleware applies a permissive default CORS policy; this
// gateway has no browser-facing config surface that would need a
// stricter, configurable allow-list.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
