// Package server exposes the console over HTTP and the counters as metrics.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verte-zerg/repostats/internal/console"
	"github.com/verte-zerg/repostats/internal/stats"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8080"
	// DefaultMetricsPath is the Prometheus scrape path.
	DefaultMetricsPath = "/metrics"
	// ExecutePath accepts remote console commands.
	ExecutePath = "/api/execute"

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Token grants access to the remote execution endpoint.
type Token struct {
	Alias   string
	Secret  string
	Manager bool
}

// Config configures a Server.
type Config struct {
	Addr        string
	MetricsPath string
	Tokens      []Token
}

// Server provides remote command execution and Prometheus metrics.
type Server struct {
	addr        string
	metricsPath string
	console     *console.Console
	tokens      map[string]Token
	registry    *prometheus.Registry
	server      *http.Server
}

// New creates a server that executes commands on c and exports counters from src.
func New(cfg Config, c *console.Console, src stats.Source) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = DefaultMetricsPath
	}
	if !strings.HasPrefix(cfg.MetricsPath, "/") {
		cfg.MetricsPath = "/" + cfg.MetricsPath
	}
	tokens := make(map[string]Token, len(cfg.Tokens))
	for _, tok := range cfg.Tokens {
		tokens[tok.Alias] = tok
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(src))

	s := &Server{
		addr:        cfg.Addr,
		metricsPath: cfg.MetricsPath,
		console:     c,
		tokens:      tokens,
		registry:    registry,
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler returns the HTTP routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST "+ExecutePath, http.HandlerFunc(s.handleExecute))
	mux.Handle("GET "+s.metricsPath, promhttp.HandlerFor(
		s.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	return mux
}

// Start serves HTTP requests until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", s.addr, "metrics", s.metricsPath, "tokens", len(s.tokens))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down server")
	return s.server.Shutdown(ctx)
}
