package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lawconnect/lawconnect/internal/auth"
	"github.com/lawconnect/lawconnect/internal/instrumentation"
)

// Endpoint paths.
const (
	PathExchange = "/oauth/exchange"
	PathRefresh  = "/oauth/refresh"
	PathSend     = "/email/send"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown of the API and metrics servers.
	DefaultShutdownTimeout = 30 * time.Second
)

// Options configures the HTTP API.
type Options struct {
	Tokens        TokenService
	Dispatcher    Dispatcher
	Authenticator auth.Authenticator

	// AllowedOrigins lists CORS origins. Empty or "*" allows any origin.
	AllowedOrigins []string

	// Limiter is optional. TrustProxy makes it key on X-Forwarded-For.
	Limiter    Limiter
	TrustProxy bool

	// Health is optional; when set /healthz and /readyz are served.
	Health *HealthChecker

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Server serves the OAuth and email endpoints.
type Server struct {
	tokens         TokenService
	dispatcher     Dispatcher
	authenticator  auth.Authenticator
	allowedOrigins []string
	limiter        Limiter
	trustProxy     bool
	health         *HealthChecker
	metrics        *instrumentation.Metrics
	logger         *slog.Logger

	httpServer *http.Server
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token service is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tokens:         opts.Tokens,
		dispatcher:     opts.Dispatcher,
		authenticator:  opts.Authenticator,
		allowedOrigins: opts.AllowedOrigins,
		limiter:        opts.Limiter,
		trustProxy:     opts.TrustProxy,
		health:         opts.Health,
		metrics:        opts.Metrics,
		logger:         logger.With("component", "http"),
	}, nil
}

// Handler returns the routed and wrapped API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, PathExchange, s.handleExchange)
	s.route(mux, PathRefresh, s.handleRefresh)
	s.route(mux, PathSend, s.handleSend)

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, path string, h http.HandlerFunc) {
	mux.Handle(path, s.instrument(path, s.recoverer(s.rateLimit(s.endpoint(h)))))
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	s.logger.Info("starting http server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
