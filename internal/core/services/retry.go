package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Retrier applies a RetryPolicy to external calls. It is shared by the
// semantic validator and the analysis stage.
type Retrier struct {
	policy  domain.RetryPolicy
	limiter *RateLimiter

	// timeout bounds each attempt; zero leaves the caller's context alone.
	timeout time.Duration

	sleep  func(ctx context.Context, d time.Duration) error
	sample func() float64
}

// NewRetrier creates a retrier. limiter may be nil.
func NewRetrier(policy domain.RetryPolicy, limiter *RateLimiter, timeout time.Duration) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{
		policy:  policy,
		limiter: limiter,
		timeout: timeout,
		sleep:   sleepContext,
		sample:  rand.Float64,
	}
}

// Do runs op until it succeeds, fails permanently, or attempts run out.
// Only transient errors (rate limits, backend hiccups, timeouts) are retried.
// It returns the last error.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if werr := r.limiter.Wait(ctx); werr != nil {
			return werr
		}

		err = r.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !domain.IsTransient(err) || attempt == r.policy.MaxAttempts {
			return err
		}

		delay := r.policy.Delay(attempt, r.sample())
		var rl *domain.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}
		if errors.Is(err, domain.ErrRateLimited) {
			r.limiter.RecordRateLimitError(delay)
		}
		logger.Debug("%s: attempt %d/%d failed (%v), retrying in %s", name, attempt, r.policy.MaxAttempts, err, delay)
		if serr := r.sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func (r *Retrier) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if r.timeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return op(callCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
