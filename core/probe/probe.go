package probe

import (
	"context"
	"errors"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/metrics"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/retry"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// ErrMalformed is returned by a Source when the response body cannot be parsed.
// It is never retried.
var ErrMalformed = errors.New("malformed lookup response")

// Lookup is the decoded answer of the remote endpoint for one identifier.
type Lookup struct {
	// OK reports whether the remote status was "ok".
	OK bool
	// Record is nil when the payload was false or null.
	Record *catalog.Record
}

// Source performs a single lookup attempt. Returned errors other than
// ErrMalformed are treated as transient.
type Source interface {
	Lookup(ctx context.Context, id int64) (Lookup, error)
}

// Outcome classifies a probe.
type Outcome int

const (
	// OutcomeNotFound covers unassigned identifiers, failed statuses, malformed
	// responses and exhausted retries.
	OutcomeNotFound Outcome = iota
	// OutcomeActive is a listing that satisfies the active predicate.
	OutcomeActive
	// OutcomeInactive is a listing that exists but is not active.
	OutcomeInactive
	// OutcomeError means the caller's context ended before the lookup ran.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActive:
		return "active"
	case OutcomeInactive:
		return "inactive"
	case OutcomeError:
		return "error"
	default:
		return "not_found"
	}
}

// Found reports whether the identifier is assigned, active or not.
func (o Outcome) Found() bool {
	return o == OutcomeActive || o == OutcomeInactive
}

// Result is the classified answer for one identifier.
type Result struct {
	ID       int64
	Outcome  Outcome
	Record   *catalog.Record
	Attempts int
	// Err holds the last lookup error, if any. It is informational for
	// NotFound results and the context error for OutcomeError.
	Err error
}

// Prober classifies identifiers through a rate-limited Source with bounded retry.
type Prober struct {
	source  Source
	limiter *ratelimit.Limiter
	policy  retry.Policy
	clock   clock.PassiveClock
	logger  *zap.Logger
}

// New creates a Prober. A nil clock uses the real clock.
func New(source Source, limiter *ratelimit.Limiter, policy retry.Policy, clk clock.PassiveClock, logger *zap.Logger) *Prober {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{source: source, limiter: limiter, policy: policy, clock: clk, logger: logger}
}

// Probe looks up id. Every attempt passes through the shared limiter.
// Transient failures are retried up to the policy bound and then reported as
// NotFound, so a probe never aborts a scan.
func (p *Prober) Probe(ctx context.Context, id int64) Result {
	res := Result{ID: id}

	policy := p.policy
	policy.OnRetry = func(err error, next time.Duration) {
		metrics.RecordRetry()
		p.logger.Debug("Retrying lookup", zap.Int64("id", id), zap.Int("attempt", res.Attempts), zap.Duration("backoff", next), zap.Error(err))
		if p.policy.OnRetry != nil {
			p.policy.OnRetry(err, next)
		}
	}

	lookup, err := retry.Do(ctx, policy, func() (Lookup, error) {
		var out Lookup
		execErr := p.limiter.Execute(ctx, func(opCtx context.Context) error {
			res.Attempts++
			var lookupErr error
			out, lookupErr = p.source.Lookup(opCtx, id)
			return lookupErr
		})
		switch {
		case execErr == nil:
			return out, nil
		case ctx.Err() != nil:
			return out, retry.Permanent(ctx.Err())
		case errors.Is(execErr, ErrMalformed):
			return out, retry.Permanent(execErr)
		default:
			return out, execErr
		}
	})

	switch {
	case err != nil && res.Attempts == 0 && ctx.Err() != nil:
		res.Outcome = OutcomeError
		res.Err = ctx.Err()
	case err != nil:
		res.Outcome = OutcomeNotFound
		res.Err = err
		p.logger.Debug("Lookup failed, treating as not found", zap.Int64("id", id), zap.Int("attempts", res.Attempts), zap.Error(err))
	default:
		res.Outcome, res.Record = p.classify(id, lookup)
	}

	metrics.RecordProbe(res.Outcome.String())
	return res
}

func (p *Prober) classify(id int64, l Lookup) (Outcome, *catalog.Record) {
	if !l.OK || l.Record == nil {
		return OutcomeNotFound, nil
	}
	r := *l.Record
	r.ID = id
	r.CheckedAt = p.clock.Now().UTC()
	if r.IsActive() {
		return OutcomeActive, &r
	}
	return OutcomeInactive, &r
}
