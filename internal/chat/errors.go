// Package chat implements the message lifecycle pipeline: the per-message
// state machine, validation, the typewriter reveal engine, persistence, and
// the orchestrator that coordinates them around the retried completion call.
//
// This file centralizes the pipeline's error taxonomy so callers can branch
// on error kind with errors.Is:
//
//   - Validation errors (bad input, capability mismatch): surfaced before any
//     side effect, never retried.
//   - Transport errors: retried by the retry policy, then surfaced.
//   - Abort/timeout: never retried, surfaced immediately (see retry.IsAbort).
//   - Response-shape errors (empty/malformed completion payload): never
//     retried, terminal for the turn.
//   - Persistence errors: logged and reported on the orchestrator's failure
//     channel, never surfaced to the user and never reverting rendered
//     content.
package chat

import (
	"errors"

	"github.com/kchalkias/go-chat-client/internal/retry"
)

var (
	// ErrEmptyMessage is returned when a send request contains no user
	// content after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUnknownModel is returned when the requested model is not in the
	// catalog.
	ErrUnknownModel = errors.New("unknown model")

	// ErrSearchUnsupported is returned when search mode is requested for a
	// model that does not declare the search capability.
	ErrSearchUnsupported = errors.New("model does not support search mode")

	// ErrBadRegenerateIndex is returned when a regeneration request does not
	// point at an assistant message immediately preceded by a user message.
	ErrBadRegenerateIndex = errors.New("regenerate index does not reference a user/assistant pair")

	// ErrNoSession is returned when the session collaborator has no signed-in
	// user to attribute the turn to.
	ErrNoSession = errors.New("no active session")

	// ErrEmptyResponse is returned when the completion service answered but
	// its payload carries no extractable content.
	ErrEmptyResponse = errors.New("completion response contains no content")
)

// IsValidation reports whether err is a pre-flight validation failure, i.e.
// one that occurred before any network or persistence side effect.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, ErrSearchUnsupported) ||
		errors.Is(err, ErrBadRegenerateIndex) ||
		errors.Is(err, ErrNoSession)
}

// IsAbort reports whether err is a cancellation or timeout signal. Alias of
// the retry package's classifier so callers need only this package.
func IsAbort(err error) bool { return retry.IsAbort(err) }
