// Package retry provides a generic retry-with-backoff wrapper for
// asynchronous operations. It has no knowledge of chat semantics: callers
// hand it any context-aware operation and a Policy, and get back the
// operation's result or its final error.
//
// Error semantics:
//   - Cancellation and timeout errors (context.Canceled,
//     context.DeadlineExceeded, net.Error timeouts) are never retried; they
//     are returned immediately so an abandoned request does not consume the
//     retry budget.
//   - Any other error is retried until the budget is exhausted, at which
//     point the last error is returned unchanged (no wrapping) so callers
//     can still branch on its kind.
//   - The inter-attempt wait is cancellable: a context cancellation during
//     the wait rejects immediately with the context's error.
package retry

import (
	"context"
	"errors"
	"net"
	"time"
)

// Policy configures the retry behavior of Do.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first
	// failure. Zero means the operation runs exactly once.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// ExponentialBackoff doubles the wait per attempt (BaseDelay * 2^n)
	// when true; otherwise every wait is BaseDelay.
	ExponentialBackoff bool
}

// DefaultPolicy matches the pipeline's outbound-call defaults.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond, ExponentialBackoff: true}
}

// Do runs op, retrying per Policy. See the package comment for error
// semantics. The same ctx is passed to every attempt.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if IsAbort(err) || attempt >= p.MaxRetries {
			return zero, lastErr
		}

		if err := sleep(ctx, p.delay(attempt)); err != nil {
			return zero, err
		}
	}
}

// delay computes the wait before the retry following attempt (0-based).
func (p Policy) delay(attempt int) time.Duration {
	if !p.ExponentialBackoff {
		return p.BaseDelay
	}
	return p.BaseDelay * (1 << uint(attempt))
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAbort reports whether err represents a cancellation or timeout signal
// that must short-circuit the retry loop.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
