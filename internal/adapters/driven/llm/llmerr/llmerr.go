// Package llmerr classifies LLM backend failures so callers can tell
// retryable errors from permanent ones.
package llmerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

// maxBodyInError bounds how much of a response body is quoted in errors.
const maxBodyInError = 300

// FromStatus converts a non-2xx response into an error.
// 429 becomes a domain.RateLimitError carrying Retry-After; 5xx and 408
// wrap domain.ErrTransient; anything else is permanent.
func FromStatus(provider string, status int, header http.Header, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxBodyInError {
		msg = msg[:maxBodyInError] + "..."
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", provider, &domain.RateLimitError{RetryAfter: RetryAfter(header)})
	case status >= 500 || status == http.StatusRequestTimeout:
		return fmt.Errorf("%s error (status %d): %s: %w", provider, status, msg, domain.ErrTransient)
	default:
		return fmt.Errorf("%s error (status %d): %s", provider, status, msg)
	}
}

// FromTransport wraps a failed round trip. Network failures are transient;
// cancellation by the caller is returned as is.
func FromTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: send request: %w", provider, err)
	}
	return fmt.Errorf("%s: send request: %w: %w", provider, err, domain.ErrTransient)
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
func RetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
