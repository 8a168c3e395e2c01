// Package api is the HTTP service layer: it maps routes onto the query
// façade and the data lifecycle, and owns the error-to-status mapping.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/orbtrack/orbtrack/internal/auth"
	"github.com/orbtrack/orbtrack/internal/ephem"
	"github.com/orbtrack/orbtrack/internal/health"
	"github.com/orbtrack/orbtrack/internal/httputil"
	"github.com/orbtrack/orbtrack/internal/metrics"
	"github.com/orbtrack/orbtrack/internal/query"
	"github.com/orbtrack/orbtrack/internal/track"
)

// Fetcher retrieves the raw upstream ephemeris document. Satisfied by
// *ephem.Fetcher; an interface so tests can stub the network.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	SourceURL() string
}

// Deps collects the server's collaborators. Cache, Track and Stream are
// optional; their routes 404 when absent.
type Deps struct {
	Facade     *query.Facade
	Fetcher    Fetcher
	Cache      *ephem.Cache
	Track      *track.Generator
	Stream     http.Handler
	Logger     *slog.Logger
	Auth       auth.Config
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a configured HTTP server with all routes registered.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{deps: deps}
	store := deps.Facade.Store()

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /epochs", s.handleEpochs)
	mux.HandleFunc("GET /epochs/{epoch}", s.handleEpoch)
	mux.HandleFunc("GET /epochs/{epoch}/speed", s.handleSpeed)
	mux.HandleFunc("GET /epochs/{epoch}/location", s.handleLocation)
	mux.HandleFunc("GET /now", s.handleNow)
	mux.HandleFunc("GET /comment", s.handleComment)
	mux.HandleFunc("GET /header", s.handleHeader)
	mux.HandleFunc("GET /metadata", s.handleMetadata)
	mux.HandleFunc("DELETE /delete-data", s.handleDeleteData)
	mux.HandleFunc("POST /post-data", s.handlePostData)
	mux.HandleFunc("GET /help", s.handleHelp)

	mux.HandleFunc("GET /track", s.handleTrack)
	mux.HandleFunc("GET /passes", s.handlePasses)
	if deps.Stream != nil {
		mux.Handle("GET /stream", deps.Stream)
	}

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.Handle("GET /readyz", health.Readyz(store))
	mux.Handle("GET /metrics", metrics.Handler())

	// Middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(deps.Logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // /stream holds the response open
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so SSE responses keep streaming.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
