package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lawconnect/lawconnect/internal/apperr"
	"github.com/lawconnect/lawconnect/internal/instrumentation"
	"github.com/lawconnect/lawconnect/internal/logging"
)

const (
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

// endpoint wraps a POST-only JSON handler with CORS preflight handling and
// method enforcement.
func (s *Server) endpoint(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			next(w, r)
		default:
			w.Header().Set("Allow", corsAllowMethods)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
				Success: false,
				Error:   fmt.Sprintf("method %s not allowed", r.Method),
				Code:    "method_not_allowed",
			})
		}
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	switch {
	case len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "" && slices.Contains(s.allowedOrigins, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
	w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
	w.Header().Set("Access-Control-Max-Age", "86400")
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// instrument records request metrics, opens the handler span and writes one
// access log line per request.
func (s *Server) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx, span := instrumentation.StartHandlerSpan(r.Context(), path)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(ctx, r.Method, path, rec.status, duration)

		status := logging.StatusSuccess
		if rec.status >= http.StatusBadRequest {
			status = logging.StatusError
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "request completed",
			logging.Endpoint(path),
			logging.RequestID(requestID),
			slog.String("method", r.Method),
			slog.Int("code", rec.status),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, duration))
	})
}

// recoverer converts panics into a 500 JSON response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.ErrorContext(r.Context(), "panic in handler",
					logging.Endpoint(r.URL.Path),
					slog.Any("panic", p),
					slog.String("stack", string(debug.Stack())))
				writeError(w, apperr.Internal("internal server error", fmt.Errorf("panic: %v", p)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// rateLimit rejects requests over the per-client limit with 429.
// Limiter errors fail open.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r, s.trustProxy)
		allowed, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			s.logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request", logging.Err(err))
			allowed = true
		}
		if !allowed {
			s.setCORSHeaders(w, r)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Success: false,
				Error:   "rate limit exceeded, please try again later",
				Code:    "rate_limit_exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address. Proxy headers are only honoured
// when trustProxy is set.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr strips the port from "IP:port" and "[IPv6]:port".
func extractIPFromAddr(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if end := strings.Index(addr, "]"); end > 0 {
			return addr[1:end]
		}
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 && strings.Count(addr, ":") == 1 {
		return addr[:i]
	}
	return addr
}
