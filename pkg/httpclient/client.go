package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Response is the raw outcome of one HTTP call: status, headers and the fully
// read body. Callers classify it themselves; the transport never interprets
// payloads.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a thin transport for the login flow. It performs single HTTP
// calls with caller-supplied headers and hands back the raw response. The
// redirect-disabled variants let callers walk redirect chains themselves so
// every hop's Set-Cookie headers can be captured.
type Client struct {
	httpClient *http.Client
	noRedirect *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client used for all calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// New creates a transport with a 30 second default timeout.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	// Derive the redirect-disabled client from the configured one so both
	// share transport and timeout settings.
	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.noRedirect = &noRedirect

	return c
}

// Get performs a GET request with automatic redirect handling.
func (c *Client) Get(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	return c.do(ctx, c.httpClient, http.MethodGet, rawURL, "", nil, headers)
}

// GetNoRedirect performs a GET request without following redirects; a 3xx
// response is returned to the caller as-is.
func (c *Client) GetNoRedirect(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	return c.do(ctx, c.noRedirect, http.MethodGet, rawURL, "", nil, headers)
}

// PostForm performs a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, rawURL string, data url.Values, headers http.Header) (*Response, error) {
	body := strings.NewReader(data.Encode())
	return c.do(ctx, c.httpClient, http.MethodPost, rawURL, "application/x-www-form-urlencoded", body, headers)
}

func (c *Client) do(ctx context.Context, client *http.Client, method, rawURL, contentType string, body io.Reader, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
