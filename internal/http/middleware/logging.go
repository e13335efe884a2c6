// Package middleware contains the shared Gin middleware of the HTTP layer:
// request correlation, structured access logs, panic recovery, Prometheus
// instrumentation, rate limiting, and hardening headers.
//
// The logging pieces compose in a fixed order: RequestID first so every log
// line carries a correlation id, then Logger, then Recovery so panics are
// reported with structured context. Handlers reach the request-scoped logger
// through LoggerFrom:
//
//	lg := middleware.LoggerFrom(c)
//	lg.Info().Int64("room_id", id).Msg("room opened")
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// loggerKey is the Gin context key holding the request-scoped logger.
	loggerKey = "logger"
	// requestIDHeader propagates the correlation id on the wire.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps logged query strings.
	maxQueryLogLength = 2048
)

// RequestID reuses an incoming X-Request-ID or mints a UUIDv4, then stores
// the id in the Gin context and echoes it on the response header. Runs first
// in the chain so everything downstream can correlate.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger emits one structured access-log line per request and attaches a
// request-scoped zerolog.Logger to the context for handlers to enrich.
//
// The line level follows the outcome: error for 5xx or when the Gin error
// list is non-empty, warn for 4xx, info otherwise. The path field is the
// registered route when one matched, the raw URL path otherwise.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := requestLogger(c)
		c.Set(loggerKey, &l)

		c.Next()

		status := c.Writer.Status()
		done := l.With().
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			done.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= http.StatusInternalServerError:
			done.Error().Msg("request")
		case status >= http.StatusBadRequest:
			done.Warn().Msg("request")
		default:
			done.Info().Msg("request")
		}
	}
}

// requestLogger builds the per-request logger with the common request fields.
func requestLogger(c *gin.Context) zerolog.Logger {
	rid, _ := c.Get(requestIDKey)
	uid, _ := c.Get("userID")
	path := c.FullPath()
	if path == "" {
		// No route matched (404, bad method); fall back to the raw path.
		path = c.Request.URL.Path
	}

	return log.With().
		Str("request_id", asString(rid)).
		Str("user_id", asString(uid)).
		Str("method", c.Request.Method).
		Str("path", path).
		Str("remote_ip", c.ClientIP()).
		Str("user_agent", c.Request.UserAgent()).
		Str("referer", c.Request.Referer()).
		Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
		Int64("bytes_in", c.Request.ContentLength).
		Logger()
}

// Recovery converts panics into JSON 500 responses.
//
// The panic value and stack are logged with the correlation id. The JSON
// error envelope is written only when nothing has hit the wire yet; on a
// partially written response the middleware can only abort.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger attached by Logger, or a
// fallback without request fields so callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString unwraps string context values, empty for anything else.
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes with an ellipsis. max <= 0 disables the cap.
// Byte truncation can split a rune, which is acceptable for log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
