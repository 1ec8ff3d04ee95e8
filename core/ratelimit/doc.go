// Package ratelimit throttles outbound lookups independently of caller concurrency.
//
// A Limiter enforces two constraints at once:
//   - at most PerSecond operations start within any trailing window
//   - consecutive starts are at least MinSpacing apart (x/time/rate reservation)
//
// Callers queue in FIFO order and a single drain goroutine admits them, so
// many scan workers can submit concurrently. Once admitted, operations run on
// the caller's goroutine and may overlap. Time comes from an injected
// k8s.io/utils clock so tests can drive the limiter with a fake clock.
//
// # Usage
//
//	lim := ratelimit.New(ratelimit.Config{PerSecond: 10, MinSpacing: 100 * time.Millisecond}, nil)
//	err := lim.Execute(ctx, func(ctx context.Context) error {
//	    return doLookup(ctx)
//	})
package ratelimit
