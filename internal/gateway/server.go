package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lambdalocal/gateway/internal/observability"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race
// conditions when multiple servers are created in tests.
var ginModeOnce sync.Once

// Options configures the HTTP serving surface.
type Options struct {
	Host string
	Port int

	// Metrics exposes Prometheus metrics on /metrics. Off by default so the
	// emulated API surface stays clean.
	Metrics  bool
	Registry *prometheus.Registry

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns Options with default values. There is no write
// timeout: a function invocation may legitimately take as long as the
// runner allows it to.
func DefaultOptions() Options {
	return Options{
		Host:        "127.0.0.1",
		Port:        3000,
		ReadTimeout: 30 * time.Second,
	}
}

// Server binds the service to host:port. Every request, regardless of
// method and path, is dispatched to the service handler; the gateway router
// owns all matching.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	logger     observability.Logger
}

// NewServer creates the HTTP server around a Service.
func NewServer(service *Service, opts Options, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()
	engine.Use(recoveryMiddleware(logger))
	engine.Use(loggingMiddleware(logger))

	if opts.Metrics && opts.Registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	// No application routes are registered on the engine, so every request
	// funnels through NoRoute into the service.
	engine.NoRoute(service.Handle)

	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", opts.Host, opts.Port),
			Handler:     engine,
			ReadTimeout: opts.ReadTimeout,
		},
		logger: logger,
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("gateway listening", observability.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying engine, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}
