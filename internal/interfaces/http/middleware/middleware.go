// Package middleware holds the gin middleware chain of the gate.
package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/benzaiten/metrics-gate/pkg/constants"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID assigns a correlation id to every request, honoring one supplied
// by the caller. The id lands in the request context and the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, requestID)
		c.Next()
	}
}

// Logger emits one structured access line per request.
func Logger(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logger.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if c.Writer.Status() >= 500 {
			log.Warn(c.Request.Context(), "request finished", fields)
			return
		}
		log.Info(c.Request.Context(), "request finished", fields)
	}
}

// Recovery turns panics into a bare 500 and logs the cause. The gate's
// contract is that no raw fault ever escapes as anything but a canonical
// status.
func Recovery(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error(c.Request.Context(), "panic recovered", fmt.Errorf("%v", recovered), logger.Fields{
			"path": c.Request.URL.Path,
		})
		c.AbortWithStatus(500)
	})
}
