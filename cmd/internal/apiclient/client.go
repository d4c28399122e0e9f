package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"glowguard/cmd/internal/session"

	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// Response is a buffered backend response.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
	// Retried is true when the response came from the re-send after a refresh.
	Retried bool
}

// Client issues authenticated requests against the backend.
// It is safe for concurrent use.
type Client struct {
	base *url.URL
	sess *session.Session

	hc        *http.Client
	timeout   time.Duration
	log       *slog.Logger
	metrics   *Metrics
	retries   int
	userAgent string
	now       func() time.Time

	onInvalidated func(error)

	flights singleflight.Group
}

// outbound is an immutable description of one logical request.
// The body is pre-encoded so it can be transmitted more than once.
type outbound struct {
	method string
	path   string
	query  url.Values
	body   []byte
}

// New builds a Client for baseURL (DefaultBaseURL when empty) over sess.
func New(baseURL string, sess *session.Session, opts ...Option) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrConfig)
	}

	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrConfig, baseURL)
	}

	c := &Client{
		base:      u,
		sess:      sess,
		timeout:   defaultTimeout,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		retries:   1,
		userAgent: "glowguard-client/1",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.hc = &http.Client{Timeout: c.timeout, Jar: jar}
	} else {
		hc := *c.hc
		c.hc = &hc
	}

	next := c.hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.hc.Transport = &loggingTransport{next: next, log: c.log, metrics: c.metrics, now: c.now}

	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Session returns the credential session the client reads and updates.
func (c *Client) Session() *session.Session { return c.sess }

// CallOption adjusts a single Do call.
type CallOption func(*callConfig)

type callConfig struct {
	query     url.Values
	noRefresh bool
}

// WithQuery sets URL query parameters.
func WithQuery(q url.Values) CallOption {
	return func(cc *callConfig) { cc.query = q }
}

// WithoutRefresh surfaces a 401 directly instead of refreshing.
// Credential-issuing calls use it: a 401 there means bad input, not an expired session.
func WithoutRefresh() CallOption {
	return func(cc *callConfig) { cc.noRefresh = true }
}

// Do sends method path with an optional JSON body and decodes a 2xx response into out.
//
// A 401 triggers one refresh-and-retry. Non-2xx outcomes are returned as *APIError
// together with the buffered Response; a failed refresh returns *RefreshError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) (*Response, error) {
	var cc callConfig
	for _, opt := range opts {
		opt(&cc)
	}

	payload, err := encodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	retries := c.retries
	if cc.noRefresh {
		retries = 0
	}

	resp, err := c.send(ctx, outbound{method: method, path: path, query: cc.query, body: payload}, retries)
	if err != nil {
		return resp, err
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return resp, fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return resp, nil
}

// send transmits o with the current access credential. retries is the remaining
// refresh-and-resend allowance for this logical request.
func (c *Client) send(ctx context.Context, o outbound, retries int) (*Response, error) {
	access, err := c.sess.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}

	resp, err := c.transmit(ctx, o, access)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && retries > 0 {
		if _, err := c.refresh(ctx, access); err != nil {
			return nil, err
		}
		c.metrics.retry()

		again, err := c.send(ctx, o, retries-1)
		if again != nil {
			again.Retried = true
		}
		return again, err
	}

	if resp.Status < 200 || resp.Status > 299 {
		return resp, &APIError{
			Method:    o.method,
			Path:      o.path,
			Status:    resp.Status,
			Detail:    detailOf(resp.Body),
			Body:      resp.Body,
			RequestID: resp.RequestID,
		}
	}
	return resp, nil
}

// transmit performs one HTTP exchange. An empty bearer sends no Authorization header.
func (c *Client) transmit(ctx context.Context, o outbound, bearer string) (*Response, error) {
	u := *c.base
	u.Path = c.base.Path + o.path
	if len(o.query) > 0 {
		u.RawQuery = o.query.Encode()
	}

	var body io.Reader
	if o.body != nil {
		body = bytes.NewReader(o.body)
	}

	req, err := http.NewRequestWithContext(ctx, o.method, u.String(), body)
	if err != nil {
		return nil, err
	}

	reqID := NewRequestID(c.now())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	hr, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = hr.Body.Close() }()

	b, err := readBody(hr.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", o.method, o.path, err)
	}

	return &Response{
		Status:    hr.StatusCode,
		Header:    hr.Header,
		Body:      b,
		RequestID: reqID,
	}, nil
}
