// Package telegram is a small Bot API client covering what the storefront
// sends, plus the update payloads it receives on its webhook.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
)

const (
	defaultAPIURL               = "https://api.telegram.org"
	defaultTimeout              = 10 * time.Second
	parseModeHTML               = "HTML"
	responseBodyReadLimit int64 = 64 << 10
)

var errTokenRequired = errors.New("telegram bot token is required")

// Client calls the Telegram Bot API.
type Client struct {
	httpClient    *http.Client
	apiURL        string
	token         string
	timeout       time.Duration
	providerToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIURL points the client at a different Bot API server.
func WithAPIURL(apiURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(apiURL), "/"); trimmed != "" {
			c.apiURL = trimmed
		}
	}
}

// WithTimeout bounds each API call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPaymentProviderToken sets the provider token used for invoices.
func WithPaymentProviderToken(token string) Option {
	return func(c *Client) {
		c.providerToken = strings.TrimSpace(token)
	}
}

// NewClient builds a Bot API client.
func NewClient(token string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, errTokenRequired
	}
	client := &Client{
		httpClient: &http.Client{},
		apiURL:     defaultAPIURL,
		token:      trimmed,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// call invokes method with a JSON payload and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "telegram client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+method+" request")
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, redact(err), "build "+method+" request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, redact(err), method+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s request failed: status %d", method, resp.StatusCode))
		}
		return pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "decode "+method+" response")
	}
	if !envelope.OK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%s rejected: %s", method, envelope.Description)).
			WithDetails(map[string]any{"method": method, "error_code": envelope.ErrorCode})
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "decode "+method+" result")
	}
	return nil
}

// FileURL returns the download URL of a file path returned by getFile.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.apiURL, c.token, strings.TrimLeft(filePath, "/"))
}

// redact keeps the bot token, which is part of every endpoint URL, out of errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
