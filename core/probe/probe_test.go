package probe_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/probe"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type step struct {
	lookup probe.Lookup
	err    error
}

// scriptedSource replays steps per identifier; the last step repeats.
type scriptedSource struct {
	mu    sync.Mutex
	steps map[int64][]step
	calls map[int64]int
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{steps: map[int64][]step{}, calls: map[int64]int{}}
}

func (s *scriptedSource) on(id int64, steps ...step) *scriptedSource {
	s.steps[id] = steps
	return s
}

func (s *scriptedSource) Lookup(_ context.Context, id int64) (probe.Lookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[id]
	s.calls[id]++
	steps := s.steps[id]
	if len(steps) == 0 {
		return probe.Lookup{OK: true}, nil
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	return steps[n].lookup, steps[n].err
}

func found(r catalog.Record) step {
	return step{lookup: probe.Lookup{OK: true, Record: &r}}
}

func newProber(t *testing.T, src probe.Source) *probe.Prober {
	t.Helper()
	lim := ratelimit.New(ratelimit.Config{PerSecond: 1000}, nil)
	policy := retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return probe.New(src, lim, policy, clocktesting.NewFakePassiveClock(now), nil)
}

func TestProbeClassification(t *testing.T) {
	errTransient := errors.New("connection reset")

	tests := []struct {
		name     string
		steps    []step
		outcome  probe.Outcome
		attempts int
	}{
		{"SellInStock", []step{found(catalog.Record{InStock: 2, Direction: catalog.DirectionSell})}, probe.OutcomeActive, 1},
		{"BuyWithoutStock", []step{found(catalog.Record{InStock: 0, Direction: catalog.DirectionBuy})}, probe.OutcomeActive, 1},
		{"SoldOut", []step{found(catalog.Record{InStock: 3, SoldOut: true})}, probe.OutcomeInactive, 1},
		{"NoStock", []step{found(catalog.Record{InStock: 0})}, probe.OutcomeInactive, 1},
		{"StatusNotOK", []step{{lookup: probe.Lookup{OK: false}}}, probe.OutcomeNotFound, 1},
		{"FalsePayload", []step{{lookup: probe.Lookup{OK: true}}}, probe.OutcomeNotFound, 1},
		{"Malformed", []step{{err: probe.ErrMalformed}}, probe.OutcomeNotFound, 1},
		{"TransientThenActive", []step{{err: errTransient}, found(catalog.Record{InStock: 1})}, probe.OutcomeActive, 2},
		{"RetriesExhausted", []step{{err: errTransient}}, probe.OutcomeNotFound, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newScriptedSource().on(42, tt.steps...)
			res := newProber(t, src).Probe(context.Background(), 42)

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.attempts, res.Attempts)
			assert.Equal(t, int64(42), res.ID)
			if tt.outcome.Found() {
				require.NotNil(t, res.Record)
				assert.Equal(t, int64(42), res.Record.ID)
				assert.False(t, res.Record.CheckedAt.IsZero())
			} else {
				assert.Nil(t, res.Record)
			}
		})
	}
}

func TestProbeCanceledBeforeAdmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newScriptedSource().on(1, found(catalog.Record{InStock: 1}))
	res := newProber(t, src).Probe(ctx, 1)

	assert.Equal(t, probe.OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, res.Attempts)
}

func TestProbeRetryHook(t *testing.T) {
	var retried int
	src := newScriptedSource().on(5, step{err: errors.New("timeout")})
	lim := ratelimit.New(ratelimit.Config{PerSecond: 1000}, nil)
	policy := retry.Policy{
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		OnRetry:     func(error, time.Duration) { retried++ },
	}

	res := probe.New(src, lim, policy, nil, nil).Probe(context.Background(), 5)
	assert.Equal(t, probe.OutcomeNotFound, res.Outcome)
	assert.Equal(t, 1, retried)
	assert.Error(t, res.Err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "active", probe.OutcomeActive.String())
	assert.Equal(t, "inactive", probe.OutcomeInactive.String())
	assert.Equal(t, "not_found", probe.OutcomeNotFound.String())
	assert.Equal(t, "error", probe.OutcomeError.String())
	assert.True(t, probe.OutcomeInactive.Found())
	assert.False(t, probe.OutcomeNotFound.Found())
}
