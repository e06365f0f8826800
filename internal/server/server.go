package server

import (
	"context"
	"net/http"
	"time"

	"github.com/n0madic/go-tgi-worker/internal/config"
	"github.com/n0madic/go-tgi-worker/internal/metrics"
	"github.com/n0madic/go-tgi-worker/internal/payload"
	"github.com/n0madic/go-tgi-worker/internal/upstream"
)

// maxBodyBytes limits the size of incoming request bodies, before and after
// content decoding.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// Forwarder sends a canonical payload to the model backend.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (*upstream.Response, error)
}

// Readiness reports whether the backend may receive traffic.
type Readiness interface {
	Ready() bool
}

// Deps are the collaborators the HTTP front is wired to.
type Deps struct {
	Registry *payload.Registry
	Version  *payload.Version
	Backend  Forwarder
	Monitor  *metrics.Monitor
	// Readiness is nil when no model log is watched; the backend is then
	// assumed to be up.
	Readiness Readiness
}

// Server is the worker's HTTP front.
type Server struct {
	Config *config.ServerConfig
	Deps

	handler    http.Handler
	httpServer *http.Server
}

// New creates a server with all routes registered.
func New(cfg *config.ServerConfig, deps Deps) *Server {
	s := &Server{Config: cfg, Deps: deps}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /v1/autoscaler", s.handleAutoscaler)
	mux.HandleFunc("GET /v1/schema", s.handleSchema)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)

	s.handler = verboseMiddleware(cfg, debugMiddleware(cfg, mux))
	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.BackendTimeout)*time.Second + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, middleware included.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ready() bool {
	return s.Readiness == nil || s.Readiness.Ready()
}
