package http

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Default request headers. The tile server serves error pages to clients
// it does not recognize as browsers, so the defaults impersonate a common
// mobile browser and advertise binary tile content types.
const (
	DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1"
	DefaultAccept    = "application/x-protobuf,application/octet-stream,*/*"
)

// Options configures the HTTP client.
type Options struct {
	// MaxRetries is the transport-level retry budget for connection
	// failures, timeouts, and 429/5xx responses.
	// Default: 3
	MaxRetries int

	// PoolSize is the maximum number of pooled connections per host.
	// One shared client amortizes TLS setup across all workers.
	// Default: 64
	PoolSize int

	// ConnectTimeout bounds connection establishment.
	// Default: 5s
	ConnectTimeout time.Duration

	// ReadTimeout bounds the whole request, headers through body.
	// Default: 25s
	ReadTimeout time.Duration

	// RetryBackoff is the initial backoff before the first retry.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the computed backoff.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// UserAgent, Accept, and Referer override the default fixed headers.
	UserAgent string
	Accept    string
	Referer   string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		PoolSize:        64,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     25 * time.Second,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 30 * time.Second,
		UserAgent:       DefaultUserAgent,
		Accept:          DefaultAccept,
	}
}

// StatusError is a non-2xx response that survived the transport retry
// budget. The fetcher formats it into a failure reason.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status:%d", e.Code)
}

// Response is a successful (2xx) tile response. The caller owns Body.
type Response struct {
	Body        io.ReadCloser
	ContentType string
	StatusCode  int
}

// Client is a connection-pooled HTTP client shared by all fetch workers.
// It is safe for concurrent use.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a client with the given options. Zero fields take
// their defaults.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = def.PoolSize
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = def.ConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.RetryMaxBackoff <= 0 {
		opts.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Accept == "" {
		opts.Accept = def.Accept
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: opts.PoolSize,
		MaxIdleConns:        opts.PoolSize * 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.ReadTimeout,
		},
		opts: opts,
	}
}

// retryableStatus matches the status codes the transport layer retries.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Get fetches url, retrying connection failures and retryable statuses up
// to MaxRetries times. A 2xx response is returned with its body still
// streaming. Any other status that survives the budget comes back as a
// *StatusError; connection-level failures come back wrapped.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var lastErr error
	var retryAfter time.Duration
	lastStatus := 0

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt, retryAfter); err != nil {
				return nil, err
			}
			retryAfter = 0
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", c.opts.Accept)
		if c.opts.Referer != "" {
			req.Header.Set("Referer", c.opts.Referer)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if retryableStatus(resp.StatusCode) {
			lastStatus = resp.StatusCode
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			drain(resp.Body)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp.Body)
			return nil, &StatusError{Code: resp.StatusCode}
		}

		return &Response{
			Body:        resp.Body,
			ContentType: resp.Header.Get("Content-Type"),
			StatusCode:  resp.StatusCode,
		}, nil
	}

	if lastStatus != 0 {
		return nil, &StatusError{Code: lastStatus}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.opts.MaxRetries+1, lastErr)
}

// backoff waits before retry number attempt (counted from 1). A positive
// retryAfter from the server takes precedence over the computed delay.
func (c *Client) backoff(ctx context.Context, attempt int, retryAfter time.Duration) error {
	delay := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if delay > c.opts.RetryMaxBackoff {
		delay = c.opts.RetryMaxBackoff
	}

	// Jitter: 0.5 to 1.5 of the computed delay
	delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))

	if retryAfter > delay {
		delay = retryAfter
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// parseRetryAfter handles the delta-seconds form of Retry-After. The
// HTTP-date form falls back to the computed backoff.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// drain discards and closes a response body so the connection can be
// reused.
func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}
