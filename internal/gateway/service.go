// Package gateway implements the local gateway service: it resolves inbound
// requests against the route table, translates them into invocation events,
// invokes the function runner, and converts the function's response back
// into an HTTP response.
package gateway

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lambdalocal/gateway/internal/event"
	"github.com/lambdalocal/gateway/internal/invoke"
	"github.com/lambdalocal/gateway/internal/metrics"
	"github.com/lambdalocal/gateway/internal/observability"
	"github.com/lambdalocal/gateway/internal/provider"
	"github.com/lambdalocal/gateway/internal/router"
	"github.com/lambdalocal/gateway/internal/util"
)

// Error envelopes mirror the upstream gateway's own error shape.
const (
	messageNotFound         = "Not Found"
	messageMethodNotAllowed = "Method Not Allowed"
	messageInternalError    = "Internal server error"
	messageNoFunction       = "No function defined for resource method"
)

// Service orchestrates router, translator, and the function runner. The
// installed router is an immutable snapshot swapped atomically, so request
// workers never observe a partially built table.
type Service struct {
	runner     invoke.Runner
	translator *event.Translator
	logger     observability.Logger
	metrics    *metrics.Metrics
	stderr     io.Writer

	router atomic.Pointer[router.Router]
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics attaches gateway metrics.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStderr redirects the function runner's diagnostic stream. It defaults
// to the process stderr and is forwarded unmodified.
func WithStderr(w io.Writer) ServiceOption {
	return func(s *Service) {
		s.stderr = w
	}
}

// NewService creates a Service. A route table must be installed before the
// service can resolve requests.
func NewService(runner invoke.Runner, logger observability.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	s := &Service{
		runner:     runner,
		translator: event.NewTranslator(),
		logger:     logger,
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstallTable compiles a built table into a router and swaps it in
// atomically. In-flight requests keep using the snapshot they resolved
// against.
func (s *Service) InstallTable(table *provider.Table) {
	compiled := router.New(table, s.logger)
	s.router.Store(compiled)
	s.metrics.ObserveRebuild("success", len(table.Routes))
	s.logger.Info("route table installed",
		observability.Int("routes", len(table.Routes)),
		observability.Int("patterns", compiled.Len()))
}

// Handle serves one request. Every failure is converted into an HTTP
// response here; nothing propagates past the request boundary.
func (s *Service) Handle(c *gin.Context) {
	start := time.Now()
	status := s.handle(c)
	s.metrics.ObserveRequest(c.Request.Method, status, time.Since(start))
}

// handle runs the request state machine and returns the final status code.
func (s *Service) handle(c *gin.Context) int {
	snapshot := s.router.Load()
	if snapshot == nil {
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}

	match, err := snapshot.Resolve(c.Request.Method, c.Request.URL.Path)
	switch {
	case errors.Is(err, util.ErrRouteNotFound):
		return writeError(c, http.StatusNotFound, messageNotFound)
	case errors.Is(err, util.ErrMethodNotAllowed):
		return writeError(c, http.StatusMethodNotAllowed, messageMethodNotAllowed)
	case err != nil:
		// Router and route-key index diverged. This is an internal bug, not
		// a caller mistake; fail the request loudly.
		s.logger.Error("route resolution failed", observability.Error(err))
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}
	rt := match.Route

	// Preflight on a CORS-enabled route is answered without invoking.
	if c.Request.Method == http.MethodOptions && rt.Cors != nil {
		for name, value := range rt.Cors.Headers() {
			c.Header(name, value)
		}
		c.Status(http.StatusOK)
		return http.StatusOK
	}

	req, err := event.FromHTTP(c.Request)
	if err != nil {
		s.logger.Warn("failed to read request body", observability.Error(err))
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}

	payload, err := s.translator.Build(req, rt, match.Pattern, match.PathParams)
	if err != nil {
		// Includes a body that cannot be decoded as text: the function is
		// never invoked.
		s.logger.Warn("failed to build invocation event",
			observability.String("function", rt.FunctionName),
			observability.Error(err))
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}

	var stdout bytes.Buffer
	invokeStart := time.Now()
	err = s.runner.Invoke(c.Request.Context(), rt.FunctionName, payload, &stdout, s.stderr)
	invokeDuration := time.Since(invokeStart)
	if err != nil {
		if errors.Is(err, util.ErrFunctionNotFound) {
			// The resolved route points at a function the runner no longer
			// knows: a stale table racing a reload.
			s.metrics.ObserveInvocation(rt.FunctionName, "not_found", invokeDuration)
			s.logger.Error("resolved route has no backing function",
				observability.String("function", rt.FunctionName))
			return writeError(c, http.StatusBadGateway, messageNoFunction)
		}
		s.metrics.ObserveInvocation(rt.FunctionName, "error", invokeDuration)
		s.logger.Error("function invocation failed",
			observability.String("function", rt.FunctionName),
			observability.Error(err))
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}
	s.metrics.ObserveInvocation(rt.FunctionName, "success", invokeDuration)

	resp, err := event.ParseResponse(stdout.Bytes(), rt.PayloadVersion(), rt.FunctionName,
		rt.BinaryMediaTypes, req.Accept())
	if err != nil {
		s.logger.Error("function returned an invalid response",
			observability.String("function", rt.FunctionName),
			observability.Error(err))
		return writeError(c, http.StatusBadGateway, messageInternalError)
	}

	for name, values := range resp.Headers {
		for _, value := range values {
			c.Writer.Header().Add(name, value)
		}
	}
	c.Status(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = c.Writer.Write(resp.Body)
	}
	return resp.StatusCode
}

// writeError writes the upstream-style JSON error envelope.
func writeError(c *gin.Context, status int, message string) int {
	c.JSON(status, gin.H{"message": message})
	return status
}
