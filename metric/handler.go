package metric

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/alertstream/errors"
)

// Server exposes the registry over HTTP for scraping.
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	path     string
}

// NewServer creates a scrape endpoint on the given port and path.
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: slog.Default().With("component", "metric-server"),
		path:   path,
	}
}

// Start begins serving in the background. It returns once the listener is
// bound so callers can fail fast on port conflicts.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Start", "bind metrics listener")
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
	s.logger.Info("metrics server started", "addr", s.Address(), "path", s.path)
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown metrics server")
	}
	return nil
}

// Address returns the bound listen address, useful when port 0 was requested.
func (s *Server) Address() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}
