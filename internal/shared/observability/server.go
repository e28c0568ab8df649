package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes /metrics and /health.
type Server struct {
	addr    string
	started time.Time
	server  *http.Server
	health  func(context.Context) any
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// SetHealthCheck replaces the default /health body with check's result.
func (s *Server) SetHealthCheck(check func(context.Context) any) {
	s.health = check
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.health != nil {
			json.NewEncoder(w).Encode(s.health(r.Context()))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "up",
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	s.started = time.Now()
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
