// Package middleware provides shared HTTP middleware.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scv_dedup_backend/platform/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the request context, reusing the
// caller's when one is supplied.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithContext(c.Request.Context()).HTTPRequest(
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			float64(time.Since(start).Microseconds())/1000.0,
			c.ClientIP(),
		)
	}
}
