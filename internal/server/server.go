// Package server exposes the evaluation core over HTTP: deal evaluation,
// vertical resolution, and a health endpoint.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dealdesk/verdict/internal/fingerprint"
	"github.com/dealdesk/verdict/internal/history"
	"github.com/dealdesk/verdict/internal/memory"
	"github.com/dealdesk/verdict/internal/policy"
)

const defaultTimeout = 30 * time.Second

// Server holds all dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	memoryStore *memory.Store
	fingerprint *fingerprint.Engine
	finder      *history.Finder
	resolver    *policy.Resolver
	rateLimiter *RateLimiter
	apiKeys     []string
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithRateLimiter enables per-tenant request rate limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.rateLimiter = rl }
}

// WithAPIKeys enables API-key authentication on the /api routes.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(
	memoryStore *memory.Store,
	fp *fingerprint.Engine,
	finder *history.Finder,
	resolver *policy.Resolver,
	opts ...Option,
) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		memoryStore: memoryStore,
		fingerprint: fp,
		finder:      finder,
		resolver:    resolver,
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultTimeout))
		r.Use(authMiddleware(s.apiKeys))
		r.Use(rateLimitMiddleware(s.rateLimiter))
		r.Post("/api/evaluate-deal", s.handleEvaluateDeal)
		r.Get("/api/resolve-vertical", s.handleResolveVertical)
	})

	return r
}
