// Package status serves probes, metrics and the last run summaries while ledgersync runs in watch mode.
package status

import (
	"context"
	"net/http"
	"time"
)

// Server is the HTTP status server.
type Server struct {
	httpServer *http.Server
}

// New creates a status server. metrics may be nil, in which case /metrics is not served.
func New(addr string, db Pinger, board *Board, metrics http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewMux(db, board, metrics),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// NewMux builds the route table.
func NewMux(db Pinger, board *Board, metrics http.Handler) *http.ServeMux {
	h := NewHandlers(db, board)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /runs/last", h.LastRuns)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
