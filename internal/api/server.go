// Package api exposes the question answering service over HTTP as a small
// JSON API.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ioc-assistant/eassistant/internal/assistant"
	"github.com/ioc-assistant/eassistant/internal/log"
)

// Agent is the question answering capability the server fronts.
type Agent interface {
	Query(ctx context.Context, req assistant.Request) (*assistant.Response, error)
	ModelName() string
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger log.Logger // Required
	Agent  Agent      // Required

	Pool *pgxpool.Pool // Optional: nil degrades /ready to liveness

	TrustProxy     bool    // Trust X-Forwarded-For/X-Real-IP headers
	RateLimitRPS   float64 // Per-IP refill rate (0 = default 5)
	RateLimitBurst int     // Per-IP burst size (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	agent  Agent
	logger log.Logger
}

// NewServer creates the server with all routes configured. Health probes
// bypass the middleware stack so orchestrators are never rate limited.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{
		agent:  cfg.Agent,
		logger: cfg.Logger.With("component", "api"),
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	rl := newRateLimiter(rps, burst, cfg.TrustProxy)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, s.logger)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(s.logger)(handler)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", s.handleHealth)
	topMux.Handle("GET /ready", readiness(cfg.Pool, s.logger))
	topMux.Handle("/", handler)

	s.mux = topMux
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
