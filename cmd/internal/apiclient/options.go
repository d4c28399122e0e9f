package apiclient

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// maxRetries caps re-sends after a refresh per logical request.
const maxRetries = 1

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Transport is wrapped
// for logging; its Jar and Timeout are kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetries enables (n >= 1) or disables (n <= 0) refresh-and-retry.
// A request is re-sent at most once whatever n is.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = min(max(n, 0), maxRetries)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// OnSessionInvalidated registers fn to run after a failed refresh has cleared
// the session. It runs once per failed refresh, on the goroutine that
// performed it, and must not block.
func OnSessionInvalidated(fn func(error)) Option {
	return func(c *Client) { c.onInvalidated = fn }
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}
