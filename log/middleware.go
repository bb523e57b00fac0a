package log

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HTTP request tracing headers
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// HTTPLogMiddleware logs every request with its trace and request IDs and
// stores a request-scoped logger in the request context
// Incoming tracing headers are honored; missing ones are generated and
// echoed back so callers can correlate
func HTTPLogMiddleware(moduleName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = NewTraceID()
			c.Header(HeaderRequestID, requestID)
		}
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = NewTraceID()
			c.Header(HeaderTraceID, traceID)
		}

		logger := New(moduleName).WithTraceID(traceID).
			WithField("request_id", requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Set(LogTraceIDKey, traceID)

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"client_ip":  c.ClientIP(),
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"bytes":      c.Writer.Size(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		msg := c.Request.Method + " " + c.Request.URL.Path
		switch {
		case status >= 500 || len(c.Errors) > 0:
			logger.Error(nil, msg, fields)
		case status >= 400:
			logger.Warn(msg, fields)
		default:
			logger.Info(msg, fields)
		}
	}
}

// RequestLogger returns the request-scoped logger placed by HTTPLogMiddleware
func RequestLogger(c *gin.Context) *Logger {
	return FromContext(c.Request.Context())
}

// RequestTraceID returns the trace ID of the current request, if any
func RequestTraceID(c *gin.Context) string {
	if v, exists := c.Get(LogTraceIDKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
