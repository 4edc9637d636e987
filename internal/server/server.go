package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"dial-a-ride/internal/handlers"
	"dial-a-ride/internal/metrics"
)

// Server wraps the HTTP server and the resources it owns
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	listener   net.Listener
	addr       string
	closers    []io.Closer
}

// Config holds server configuration
type Config struct {
	Addr string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	// Closers are closed after the HTTP server shuts down
	Closers []io.Closer
}

// New creates a server for handler (does not start it)
func New(cfg Config, handler *handlers.Handler) *Server {
	metrics.Register()
	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		addr:       cfg.Addr,
		closers:    cfg.Closers,
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("[HTTP] Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server and closes owned resources
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for _, c := range s.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	route := func(pattern, path string, fn http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(path, fn))
	}

	route("POST /api/v1/schedule", "/api/v1/schedule", handler.HandleSchedule)
	route("GET /api/v1/runs", "/api/v1/runs", handler.HandleListRuns)
	route("GET /api/v1/runs/{id}", "/api/v1/runs/{id}", handler.HandleGetRun)
	route("GET /healthz", "/healthz", handler.HandleHealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("[HTTP] %s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
