package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// NewRouter wires the endpoints. explore, metrics and live may be nil.
func NewRouter(h *Handler, explore *ExplorerHandler, health *HealthHandler, metrics, live http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/trades", h.GetTrades)
	mux.HandleFunc("GET /api/sync", h.Sync)
	mux.HandleFunc("GET /api/trade/{id}", h.GetShare)
	mux.HandleFunc("POST /api/trade/{id}", h.SaveShare)
	mux.HandleFunc("POST /api/trade", h.CreateShare)
	mux.HandleFunc("GET /api/leaderboard", h.GetLeaderboard)
	mux.HandleFunc("GET /healthz", health.Check)

	if explore != nil {
		mux.HandleFunc("GET /api/whale/{address}", explore.GetWhale)
		mux.HandleFunc("GET /api/holders/{marketId}", explore.GetHolders)
		mux.HandleFunc("GET /api/markets", explore.GetMarkets)
		mux.HandleFunc("GET /api/market/{slug}", explore.GetMarket)
	}

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	if live != nil {
		mux.Handle("GET /ws", live)
	}

	return logRequests(mux)
}

// logRequests logs every request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http_request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Server wraps http.Server with logged start and shutdown.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a Server listening on port.
func NewServer(port int, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("http_server_starting", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http_server_error", "error", err)
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("http_server_stopping")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("http_server_shutdown_error", "error", err)
		return err
	}
	return nil
}
