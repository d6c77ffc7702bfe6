package domain

import "time"

// RetryPolicy governs retries of external calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// Jitter is the fraction (0..1) of each delay that is randomised.
	Jitter float64

	// MaxDelay caps a single wait; zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		Jitter:      0.2,
		MaxDelay:    30 * time.Second,
	}
}

// Delay returns the wait before retry number attempt (1-based), given a
// random sample in [0,1).
func (p RetryPolicy) Delay(attempt int, sample float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		// Spread within [d*(1-j), d*(1+j)).
		d = d * (1 - p.Jitter + 2*p.Jitter*sample)
	}
	return time.Duration(d)
}
