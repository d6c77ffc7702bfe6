package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds client-side rate limiting for an LLM backend.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit. Zero disables limiting.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// ProviderRateLimits holds the limits applied when none are configured.
type ProviderRateLimits struct {
	// Local applies to backends on this machine, such as Ollama.
	Local RateLimitConfig
	// Remote applies to hosted APIs, bounded by account quota.
	Remote RateLimitConfig
}

// For returns the limits for a local or remote backend.
func (p ProviderRateLimits) For(local bool) RateLimitConfig {
	if local {
		return p.Local
	}
	return p.Remote
}

// DefaultRateLimits provides conservative defaults for local and remote backends.
var DefaultRateLimits = ProviderRateLimits{
	Local:  RateLimitConfig{RequestsPerSecond: 2.0, BurstSize: 2},
	Remote: RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10},
}

// defaultBackoff is used when a 429 carries no retry hint.
const defaultBackoff = 30 * time.Second

// RateLimiter throttles calls to an LLM backend.
// It uses a token bucket with an additional pause after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any pause set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError pauses all callers for retryAfter (or a default).
// A shorter pause never overrides a longer one already in effect.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if r == nil {
		return
	}
	if retryAfter <= 0 {
		retryAfter = defaultBackoff
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	until := time.Now().Add(retryAfter)
	if until.After(r.retryAt) {
		r.retryAt = until
	}
}
