package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lambdalocal/gateway/internal/observability"
)

// recoveryMiddleware converts a panicking request into the standard error
// envelope. One failing request must never take down the service or affect
// other in-flight requests.
func recoveryMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("request handler panicked",
					observability.String("path", c.Request.URL.Path),
					observability.Any("panic", r))
				if !c.Writer.Written() {
					c.JSON(http.StatusBadGateway, gin.H{"message": messageInternalError})
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs one line per handled request.
func loggingMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request handled",
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)))
	}
}
