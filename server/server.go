// Package server exposes the Ghostscript engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/cache"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/engine"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
)

// Runner executes a single Ghostscript operation. *engine.Engine is the
// production implementation.
type Runner interface {
	Run(ctx context.Context, req engine.RunRequest) (*engine.RunResult, error)
}

// Options holds server-level settings not covered by the config file.
type Options struct {
	// RedisClient enables distributed rate limiting when set.
	RedisClient *redis.Client
}

// Server is the HTTP API over the Ghostscript engine.
type Server struct {
	runner Runner
	store  cache.Cache
	cfg    *config.Config
	logger logger.Logger
	router *chi.Mux
}

// New creates the API server with the chi middleware stack. The store
// may be nil to disable artifact caching.
func New(runner Runner, store cache.Cache, cfg *config.Config, log logger.Logger, opts *Options) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg == nil {
		cfg = config.New()
	}
	if log == nil {
		log = logger.Noop()
	}
	if opts == nil {
		opts = &Options{}
	}

	s := &Server{
		runner: runner,
		store:  store,
		cfg:    cfg,
		logger: log,
	}

	requests := cfg.Server.RateLimitRequests
	if requests == 0 {
		requests = 100
	}
	window := cfg.Server.RateLimitWindow.Std()
	if window == 0 {
		window = time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(RateLimit(RateLimitConfig{
		RequestLimit:   requests,
		WindowDuration: window,
		RedisClient:    opts.RedisClient,
	}))

	r.Post("/v1/process", s.handleProcess)
	r.Get("/v1/operations", s.handleOperations)
	r.Post("/upload", s.handleLegacyUpload)
	r.Get("/health", s.handleHealth)

	s.router = r
	return s, nil
}

// Router returns the underlying HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
