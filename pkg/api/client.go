package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/zenlink-im/zenlink-go/pkg/apicrypto"
	"github.com/zenlink-im/zenlink-go/pkg/httpclient"
	"github.com/zenlink-im/zenlink-go/pkg/session"
)

// Client calls the platform's REST endpoints with an established session:
// parameters are encrypted with the session's derived key, the session
// cookies are attached, and the common response envelope is unwrapped.
type Client struct {
	transport *httpclient.Client
	baseURL   string
	sess      *session.Session
	cipher    *apicrypto.Cipher
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the HTTP transport used for every call.
func WithTransport(transport *httpclient.Client) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// NewClient creates an API client for an established session. The parameter
// encryption key is derived from the session's device identifier and secret.
func NewClient(sess *session.Session, secret string, opts ...Option) (*Client, error) {
	cipher, err := apicrypto.NewCipher(apicrypto.DeriveKey(sess.IMEI, secret))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	c := &Client{
		transport: httpclient.New(),
		baseURL:   "https://api.zenlink.me",
		sess:      sess,
		cipher:    cipher,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// envelope is the common JSON wrapper of every API response.
type envelope struct {
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	Data         json.RawMessage `json:"data"`
}

// APIError is a non-zero error code returned by the platform API.
type APIError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// call POSTs one encrypted-parameter request and decodes the envelope's data
// object into out. Passing a nil out discards the data.
func (c *Client) call(ctx context.Context, path string, params map[string]string, out any) error {
	encrypted, err := c.cipher.EncryptParams(params)
	if err != nil {
		return fmt.Errorf("failed to encrypt params: %w", err)
	}

	callURL := c.baseURL + path
	data := url.Values{}
	data.Set("params", encrypted)
	data.Set("imei", c.sess.IMEI)

	headers := http.Header{}
	headers.Set("User-Agent", c.sess.UserAgent)
	cookieHeader, err := c.sess.CookieHeader(callURL)
	if err != nil {
		return fmt.Errorf("failed to build cookie header: %w", err)
	}
	if cookieHeader != "" {
		headers.Set("Cookie", cookieHeader)
	}

	resp, err := c.transport.PostForm(ctx, callURL, data, headers)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	if env.ErrorCode != 0 {
		return &APIError{Code: env.ErrorCode, Message: env.ErrorMessage}
	}

	if out == nil || env.Data == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse data from %s: %w", path, err)
	}
	return nil
}

// SendMessageResult is the data object of a message/send response.
type SendMessageResult struct {
	MessageID string `json:"message_id"`
	Timestamp int64  `json:"timestamp"`
}

// SendMessage sends a text message into a thread.
func (c *Client) SendMessage(ctx context.Context, threadID, text string) (*SendMessageResult, error) {
	params := map[string]string{
		"thread_id": threadID,
		"message":   text,
	}

	var result SendMessageResult
	if err := c.call(ctx, "/v1/message/send", params, &result); err != nil {
		return nil, err
	}

	slog.Debug("message sent", "threadID", threadID, "messageID", result.MessageID)
	return &result, nil
}

// ServerInfo is the data object of a server/info response.
type ServerInfo struct {
	APIVersion  string `json:"api_version"`
	ServerTime  int64  `json:"server_time"`
	Maintenance bool   `json:"maintenance"`
}

// GetServerInfo fetches the platform's API version and status.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.call(ctx, "/v1/server/info", map[string]string{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
