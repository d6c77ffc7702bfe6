package llmerr

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
)

func TestFromStatus(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "12")

	err := FromStatus("openai", http.StatusTooManyRequests, header, []byte("slow down"))
	var rl *domain.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 12*time.Second, rl.RetryAfter)
	assert.True(t, domain.IsTransient(err))

	err = FromStatus("openai", http.StatusBadGateway, nil, []byte("upstream"))
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.Contains(t, err.Error(), "status 502")

	err = FromStatus("openai", http.StatusUnauthorized, nil, []byte("bad key"))
	assert.False(t, domain.IsTransient(err))
	assert.Contains(t, err.Error(), "bad key")
}

func TestFromTransport(t *testing.T) {
	assert.True(t, domain.IsTransient(FromTransport("ollama", errors.New("connection refused"))))
	assert.False(t, domain.IsTransient(FromTransport("ollama", context.Canceled)))
}

func TestRetryAfter(t *testing.T) {
	assert.Zero(t, RetryAfter(nil))
	assert.Zero(t, RetryAfter(http.Header{"Retry-After": []string{"soon"}}))
	assert.Equal(t, 3*time.Second, RetryAfter(http.Header{"Retry-After": []string{"3"}}))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, RetryAfter(http.Header{"Retry-After": []string{future}}), 30*time.Minute)
}
