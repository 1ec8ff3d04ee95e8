package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

// Config holds the admission policy of a Limiter.
type Config struct {
	// PerSecond is the maximum number of operations started in any trailing Window.
	PerSecond int
	// MinSpacing is the minimum delay between two consecutive starts.
	MinSpacing time.Duration
	// Window is the length of the trailing window. Defaults to one second.
	Window time.Duration
}

// Limiter admits operations in FIFO order so that no more than PerSecond
// operations start within any trailing Window and consecutive starts are at
// least MinSpacing apart. A single drain goroutine performs admissions; it is
// started on demand and exits when the queue is empty.
type Limiter struct {
	clock   clock.Clock
	window  time.Duration
	limit   int
	spacing *rate.Limiter

	mu       sync.Mutex
	queue    []*waiter
	draining bool

	// starts is a ring of the last `limit` admission times.
	starts []time.Time
	next   int

	// OnWait, when set, is called with the time spent blocked before each admission.
	OnWait func(time.Duration)
}

type waiter struct {
	ready    chan struct{}
	canceled bool
}

// New creates a Limiter. A nil clock uses the real clock.
func New(cfg Config, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 1
	}

	spacing := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinSpacing > 0 {
		spacing = rate.NewLimiter(rate.Every(cfg.MinSpacing), 1)
	}

	return &Limiter{
		clock:   clk,
		window:  cfg.Window,
		limit:   cfg.PerSecond,
		spacing: spacing,
		starts:  make([]time.Time, 0, cfg.PerSecond),
	}
}

// Execute waits for admission and then runs op on the caller's goroutine.
// Errors from op are returned unchanged. If ctx ends while the caller is still
// queued, Execute returns ctx.Err() and op is never run.
func (l *Limiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := &waiter{ready: make(chan struct{}, 1)}

	l.mu.Lock()
	l.queue = append(l.queue, w)
	if !l.draining {
		l.draining = true
		go l.drain()
	}
	l.mu.Unlock()

	select {
	case <-w.ready:
	case <-ctx.Done():
		l.mu.Lock()
		w.canceled = true
		l.mu.Unlock()
		// Admission may have raced with cancellation; the slot is spent either way.
		return ctx.Err()
	}

	return op(ctx)
}

// Pending returns the number of callers waiting for admission.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		w := l.pop()
		if w == nil {
			l.draining = false
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		l.admit()
		w.ready <- struct{}{}
	}
}

// pop removes the first live waiter. Caller holds mu.
func (l *Limiter) pop() *waiter {
	for len(l.queue) > 0 {
		w := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		if !w.canceled {
			return w
		}
	}
	return nil
}

// admit blocks until the window and spacing constraints allow one more start
// and records it. Only the drain goroutine calls admit.
func (l *Limiter) admit() {
	begin := l.clock.Now()

	if len(l.starts) == l.limit {
		ready := l.starts[l.next].Add(l.window)
		if now := l.clock.Now(); now.Before(ready) {
			l.clock.Sleep(ready.Sub(now))
		}
	}

	now := l.clock.Now()
	if d := l.spacing.ReserveN(now, 1).DelayFrom(now); d > 0 {
		l.clock.Sleep(d)
		now = l.clock.Now()
	}

	if len(l.starts) < l.limit {
		l.starts = append(l.starts, now)
	} else {
		l.starts[l.next] = now
		l.next = (l.next + 1) % l.limit
	}

	if l.OnWait != nil {
		l.OnWait(now.Sub(begin))
	}
}
