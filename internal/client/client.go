package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the local development backend
	DefaultBaseURL = "http://localhost:8080/api/v1"

	// DefaultTimeout is the per-request timeout
	DefaultTimeout = 15 * time.Second
)

// Config holds the transport settings for a Client
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RefreshPath    string
	RefreshTimeout time.Duration
	StrictRotation bool
	UserAgent      string
}

// Option customizes client construction
type Option func(*options)

type options struct {
	base        http.RoundTripper
	refresher   Refresher
	coordinator []CoordinatorOption
}

// WithBaseTransport sets the innermost transport (defaults to http.DefaultTransport)
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.base = rt
	}
}

// WithRefresher replaces the HTTP refresher
func WithRefresher(r Refresher) Option {
	return func(o *options) {
		o.refresher = r
	}
}

// WithCoordinatorOptions passes options through to the AuthCoordinator
func WithCoordinatorOptions(opts ...CoordinatorOption) Option {
	return func(o *options) {
		o.coordinator = append(o.coordinator, opts...)
	}
}

// Client talks to the REST backend with automatic token refresh
type Client struct {
	baseURL      string
	userAgent    string
	timeout      time.Duration
	httpClient   *http.Client
	tokenManager TokenManager
	coordinator  *AuthCoordinator
}

// NewClient creates a new API client with automatic token refresh.
// If tokenManager is nil, no auth interceptor is installed (useful for login and register).
func NewClient(cfg Config, tokenManager TokenManager, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.base == nil {
		o.base = http.DefaultTransport
	}

	// Chain: request ID -> auth -> metrics -> base.
	// The refresher shares the metrics layer but never the auth layer.
	instrumented := NewMetricsTransport(o.base)
	transport := instrumented

	var coordinator *AuthCoordinator
	if tokenManager != nil {
		refresher := o.refresher
		if refresher == nil {
			refresher = NewHTTPRefresher(cfg.BaseURL, cfg.RefreshPath, instrumented)
		}
		coordOpts := []CoordinatorOption{WithRefreshTimeout(cfg.RefreshTimeout)}
		if cfg.StrictRotation {
			coordOpts = append(coordOpts, WithStrictRotation())
		}
		coordOpts = append(coordOpts, o.coordinator...)
		coordinator = NewAuthCoordinator(tokenManager, refresher, coordOpts...)
		transport = NewAuthTransport(instrumented, coordinator, cfg.RefreshPath)
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    cfg.UserAgent,
		timeout:      cfg.Timeout,
		tokenManager: tokenManager,
		coordinator:  coordinator,
		httpClient: &http.Client{
			Transport: NewRequestIDTransport(transport),
		},
	}, nil
}

// NewRequest builds a request for path relative to the base URL. body is JSON encoded.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// Raw sends a request and returns the response for the caller to consume.
// Non-2xx responses are turned into *APIError.
func (c *Client) Raw(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	ctx, cancel := c.withDefaultTimeout(ctx)
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		return nil, decodeEnvelope(resp, nil)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Do sends a request and decodes the envelope's data into out (which may be nil)
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()
	req, err := c.NewRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp, out)
}

// withDefaultTimeout bounds ctx by the client timeout unless the caller already set a deadline.
// Long-running calls such as exports pass their own, longer deadline.
func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// cancelOnClose releases a request context once the caller is done with the body
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// Get is Do with GET
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post is Do with POST
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

// Patch is Do with PATCH
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete is Do with DELETE
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TokenManager returns the token manager (nil for unauthenticated clients)
func (c *Client) TokenManager() TokenManager {
	return c.tokenManager
}

// Coordinator returns the auth coordinator (nil for unauthenticated clients)
func (c *Client) Coordinator() *AuthCoordinator {
	return c.coordinator
}

// HTTPClient returns the underlying HTTP client with the full transport chain
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}
