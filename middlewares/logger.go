package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loggerKey       = "logger"
	RequestIDHeader = "X-Request-ID"
)

// RequestLogger attaches a request-scoped logger and logs each completed
// request.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		log := base.With("request_id", reqID, "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Set(loggerKey, log)

		c.Next()

		status := c.Writer.Status()
		fields := []any{"status", status, "latency", time.Since(start), "client_ip", c.ClientIP()}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			log.Errorw("request completed", fields...)
		case status >= 400:
			log.Warnw("request completed", fields...)
		default:
			log.Infow("request completed", fields...)
		}
	}
}

// Logger returns the request's logger, or a no-op one outside RequestLogger.
func Logger(c *gin.Context) *zap.SugaredLogger {
	if v, ok := c.Get(loggerKey); ok {
		if log, ok := v.(*zap.SugaredLogger); ok {
			return log
		}
	}
	return zap.NewNop().Sugar()
}
