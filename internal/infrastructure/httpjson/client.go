package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	userAgent    = "WorkflowPulse/1.0"
	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs JSON GET requests against one upstream.
type Client struct {
	http Doer
	// Prefix is stripped from response bodies before decoding (anti-XSSI guards).
	prefix string
}

// Option configures a Client.
type Option func(*Client)

// WithDoer swaps the transport, mostly for tests.
func WithDoer(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithBodyPrefix strips a fixed prefix such as ")]}'" before decoding.
func WithBodyPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// NewClient creates a client with a 20s timeout unless a Doer is supplied.
func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: 20 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL and decodes the JSON body into v.
func (c *Client) Get(ctx context.Context, rawURL string, v any) error {
	body, err := c.GetRaw(ctx, rawURL)
	if err != nil {
		return err
	}

	if c.prefix != "" {
		body = bytes.TrimLeft(body, " \t\r\n")
		body = bytes.TrimPrefix(body, []byte(c.prefix))
		body = bytes.TrimLeft(body, ", \t\r\n")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetRaw fetches rawURL and returns the body of a 2xx response.
func (c *Client) GetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			URL:        redact(rawURL),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// redact drops the query string so API keys never reach logs.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
