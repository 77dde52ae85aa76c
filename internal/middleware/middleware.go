package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"songbook/internal/apperrors"
	"songbook/internal/metrics"
	"songbook/internal/tracing"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Middleware holds the shared HTTP middleware
type Middleware struct {
	limiter *rate.Limiter
}

// NewMiddleware creates the middleware set. A non-positive rps disables rate limiting.
func NewMiddleware(rps float64, burst int) *Middleware {
	m := &Middleware{}
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return m
}

// RequestID reuses the caller's X-Request-ID or assigns a new one
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestIDFrom returns the id assigned by RequestID
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// Logger writes one structured line per request
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", RequestIDFrom(c),
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("Request failed", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("Request rejected", attrs...)
		default:
			slog.Info("Request handled", attrs...)
		}
	}
}

// Observe records request metrics and a server span labelled with the matched route
func (m *Middleware) Observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		start := time.Now()
		ctx, span := tracing.StartRequestSpan(c.Request.Context(), c.Request.Method, route)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		var err error
		if status >= http.StatusInternalServerError && len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		tracing.End(span, err)

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RateLimit rejects requests above the configured rate with 429
func (m *Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RateLimited",
				"message": "too many requests, retry later",
			})
			return
		}
		c.Next()
	}
}

// Recovery turns a panic into a 500 with the standard error body
func (m *Middleware) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("Panic while handling request", "panic", recovered, "path", c.Request.URL.Path, "request_id", RequestIDFrom(c))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   string(apperrors.KindInternal),
			"message": "internal error",
		})
	})
}
