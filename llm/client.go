package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"k8s.io/klog/v2"

	"github.com/sammcj/tripnow-mcp/logging"
	"github.com/sammcj/tripnow-mcp/metrics"
	"github.com/sammcj/tripnow-mcp/types"
)

const (
	// DefaultTimeout bounds a single upstream request
	DefaultTimeout = 30 * time.Second

	// maxErrorBody is the number of characters of an error body kept for diagnostics
	maxErrorBody = 500
)

// Client issues single-attempt JSON POST requests to the TripNow API
type Client struct {
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics records upstream latency on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a new upstream client. A zero timeout uses DefaultTimeout.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends body as JSON to url and returns the raw response text.
// Non-2xx answers yield *types.UpstreamHTTPError; network failures yield
// *types.UpstreamTransportError. There is no retry.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body any) (string, error) {
	logger := klog.FromContext(ctx)

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	logger.V(logging.DEBUG).Info("sending upstream request", "url", url, "bodyBytes", len(data))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveUpstream("error", time.Since(start).Seconds())
		logger.V(logging.WARNING).Info("upstream request failed", "url", url, "err", err)
		return "", &types.UpstreamTransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return "", &types.UpstreamTransportError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.V(logging.INFO).Info("upstream returned error status", "status", resp.StatusCode, "bodyBytes", len(respBody))
		return "", &types.UpstreamHTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       truncate(string(respBody), maxErrorBody),
		}
	}

	logger.V(logging.DEBUG).Info("received upstream response", "status", resp.StatusCode, "bodyBytes", len(respBody))
	return string(respBody), nil
}

// truncate keeps at most n characters of s, cutting on a rune boundary.
// Bytes are never rewritten, so invalid UTF-8 survives as-is.
func truncate(s string, n int) string {
	offset := 0
	for count := 0; count < n && offset < len(s); count++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return s[:offset]
}
