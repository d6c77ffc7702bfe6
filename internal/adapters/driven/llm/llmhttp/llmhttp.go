// Package llmhttp is the JSON-over-HTTP round trip shared by the LLM
// backends. Failures are classified with llmerr so the retrier can tell
// rate limits and outages from bad requests.
package llmhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/adapters/driven/llm/llmerr"
)

// maxResponseBytes bounds a decoded reply. Analysis answers are a few KiB.
const maxResponseBytes = 8 << 20

// Client talks to one provider's API.
type Client struct {
	provider string
	baseURL  string
	header   http.Header
	http     *http.Client
}

// New creates a client. header is sent with every request.
func New(provider, baseURL string, timeout time.Duration, header http.Header) *Client {
	if header == nil {
		header = http.Header{}
	}
	return &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		header:   header,
		http:     &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the reply into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// Get fetches path and decodes the reply into out. A nil out discards it.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return llmerr.FromTransport(c.provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return llmerr.FromTransport(c.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return llmerr.FromStatus(c.provider, resp.StatusCode, resp.Header, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}
