// Package ai defines the outbound contract with the remote completion
// service. It exposes a provider-agnostic Client interface plus the wire
// types for requests and responses, and leaves the concrete transport to
// per-provider implementations (gateway.go, openai.go) selected at startup
// via constructor injection.
package ai

import (
	"context"
	"strings"
)

// Client is the provider-agnostic completion call. The bearer token comes
// from the session collaborator and is passed per call because sessions can
// rotate between turns.
//
// Implementations must honor ctx for cancellation and timeouts, surface
// transport failures as chat-retryable errors, and return abort/timeout
// errors unwrapped so the retry layer can classify them.
type Client interface {
	Complete(ctx context.Context, token string, req CompletionRequest) (*CompletionResponse, error)
}

// Message is an utterance in the outbound conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the minimal request contract of the completion call.
//
// ClientMessageID is the idempotency key correlating this call to the
// optimistic UI message, so a duplicate retry cannot duplicate persisted
// turns. SkipPersistence signals the remote side to not itself write rows,
// since this client performs persistence.
type CompletionRequest struct {
	RoomID          *int64    `json:"roomId"`
	Messages        []Message `json:"messages"`
	Model           string    `json:"model"`
	ClientMessageID string    `json:"clientMessageId,omitempty"`
	SkipPersistence bool      `json:"skipPersistence,omitempty"`
}

// APIError is the structured error a provider may embed in an otherwise
// well-formed response body.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Choice wraps one candidate completion in the OpenAI-style response shape.
type Choice struct {
	Message Message `json:"message"`
}

// CompletionResponse is the union of the response shapes the supported
// providers return. Either Choices carries the completion (OpenAI-style) or
// the flat Content field does (simple gateway path).
type CompletionResponse struct {
	Choices     []Choice  `json:"choices,omitempty"`
	Content     string    `json:"content,omitempty"`
	Error       *APIError `json:"error,omitempty"`
	Citations   []string  `json:"citations,omitempty"`
	TimeWarning string    `json:"time_warning,omitempty"`
}

// Text extracts the completion content. The second return is false when the
// response carries no usable content: no choices and no flat content, an
// embedded provider error, or content that is empty after trimming.
func (r *CompletionResponse) Text() (string, bool) {
	if r == nil || r.Error != nil {
		return "", false
	}
	if len(r.Choices) > 0 {
		c := r.Choices[0].Message.Content
		if strings.TrimSpace(c) == "" {
			return "", false
		}
		return c, true
	}
	if strings.TrimSpace(r.Content) == "" {
		return "", false
	}
	return r.Content, true
}
