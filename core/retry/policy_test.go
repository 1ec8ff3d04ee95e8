package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo(t *testing.T) {
	transient := errors.New("connection reset")

	t.Run("SucceedsAfterTransientFailures", func(t *testing.T) {
		calls := 0
		retries := 0
		p := Policy{MaxAttempts: 3, Backoff: time.Millisecond, OnRetry: func(error, time.Duration) { retries++ }}

		got, err := Do(context.Background(), p, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, transient
			}
			return 42, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 42, got)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("StopsAtMaxAttempts", func(t *testing.T) {
		calls := 0
		p := Policy{MaxAttempts: 3, Backoff: time.Millisecond}

		_, err := Do(context.Background(), p, func() (string, error) {
			calls++
			return "", transient
		})

		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("PermanentErrorOnLastAttemptIsUnwrapped", func(t *testing.T) {
		boom := errors.New("boom")
		p := Policy{MaxAttempts: 1, Backoff: time.Millisecond}

		_, err := Do(context.Background(), p, func() (int, error) {
			return 0, Permanent(boom)
		})

		assert.Same(t, boom, err)
	})

	t.Run("PermanentErrorIsNotRetried", func(t *testing.T) {
		calls := 0
		malformed := errors.New("malformed")
		p := Policy{MaxAttempts: 5, Backoff: time.Millisecond}

		_, err := Do(context.Background(), p, func() (bool, error) {
			calls++
			return false, Permanent(malformed)
		})

		assert.ErrorIs(t, err, malformed)
		assert.Equal(t, 1, calls)
	})

	t.Run("ZeroAttemptsMeansOne", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), Policy{}, func() (int, error) {
			calls++
			return 0, transient
		})

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("ContextCancelledDuringBackoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Policy{MaxAttempts: 10, Backoff: time.Hour}

		_, err := Do(ctx, p, func() (int, error) {
			cancel()
			return 0, transient
		})

		assert.Error(t, err)
	})
}
