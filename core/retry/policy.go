// Package retry provides the bounded retry policy shared by every probe call site.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts uint
	// Backoff is the fixed delay between attempts.
	Backoff time.Duration
	// OnRetry, when set, is called after a failed attempt that will be retried.
	OnRetry func(err error, next time.Duration)
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a Permanent error, the attempts are
// exhausted or ctx ends. Attempts for one call are strictly sequential.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Backoff)),
		backoff.WithMaxTries(attempts),
		// Bounded by attempts, not elapsed time.
		backoff.WithMaxElapsedTime(0),
	}
	if p.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(p.OnRetry)))
	}

	v, err := backoff.Retry(ctx, backoff.Operation[T](op), opts...)
	// A Permanent error on the last attempt comes back still wrapped.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, err
}
