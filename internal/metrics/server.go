package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goran-ethernal/TzIndexor/internal/logger"
	"github.com/goran-ethernal/TzIndexor/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server that exposes Prometheus metrics.
type Server struct {
	config *config.MetricsConfig
	log    *logger.Logger
	server *http.Server
	addr   net.Addr
	stopCh chan struct{}
}

// NewServer creates a new metrics server.
func NewServer(config *config.MetricsConfig, log *logger.Logger) *Server {
	return &Server{
		config: config,
		log:    log,
		stopCh: make(chan struct{}),
	}
}

// Start binds the listen address, then serves metrics and collects system metrics in the background.
func (s *Server) Start(ctx context.Context) error {
	if s.config == nil || !s.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.addr = listener.Addr()

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.updateSystemMetrics(ctx)

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("metrics server error: %v", err)
		}
	}()

	s.log.Infof("Metrics server listening on %s%s", s.addr, s.config.Path)
	return nil
}

// Addr returns the bound address, or nil when the server is not running.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop stops the metrics HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	close(s.stopCh)

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	return nil
}

func (s *Server) updateSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	UpdateSystemMetrics()

	for {
		select {
		case <-ticker.C:
			UpdateSystemMetrics()
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		}
	}
}
