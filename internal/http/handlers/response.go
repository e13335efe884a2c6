// Package handlers implements the HTTP surface of the message pipeline.
//
// This file holds the shared response helpers. Every error leaves the API as
// an ErrorResponse with a stable machine-readable code (see errors.go) plus
// the request correlation id, so clients can branch programmatically and
// operators can match a user report to a log line:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "room not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kchalkias/go-chat-client/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// RequestID echoes the X-Request-ID header for log correlation.
	RequestID string `json:"request_id,omitempty"`
	// Code is stable and machine-readable (see errors.go).
	Code string `json:"code"`
	// Message is human-readable and safe to show to users.
	Message string `json:"message"`
}

// fail aborts the request with the error envelope. Server-side failures
// (5xx) are additionally logged through the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with the given status.
func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

// noContent writes an empty 204.
func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
