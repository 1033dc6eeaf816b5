// Package commerce is the JSON client for the backend commerce service:
// bot users, the catalog, order groups and orders.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errBaseURLRequired = errors.New("commerce base url is required")

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Users       string
	Categories  string
	Products    string
	OrderGroups string
	Orders      string
}

// DefaultPaths mirrors the backend defaults.
func DefaultPaths() Paths {
	return Paths{
		Users:       "/users",
		Categories:  "/categories/",
		Products:    "/products/",
		OrderGroups: "/order-groups/",
		Orders:      "/orders/",
	}
}

// Client talks to the commerce backend. Every call is bounded by the
// configured timeout; a timeout surfaces as a dependency error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	paths      Paths
	timeout    time.Duration
	logg       *logger.Logger
	validate   *validator.Validate
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

// WithPaths overrides endpoint paths. Empty fields keep their defaults.
func WithPaths(paths Paths) Option {
	return func(c *Client) {
		if paths.Users != "" {
			c.paths.Users = paths.Users
		}
		if paths.Categories != "" {
			c.paths.Categories = paths.Categories
		}
		if paths.Products != "" {
			c.paths.Products = paths.Products
		}
		if paths.OrderGroups != "" {
			c.paths.OrderGroups = paths.OrderGroups
		}
		if paths.Orders != "" {
			c.paths.Orders = paths.Orders
		}
	}
}

// WithTimeout bounds each backend call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger receives data-quality warnings such as unparseable prices.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds the commerce client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("parse commerce base url: %w", err)
	}
	client := &Client{
		httpClient: &http.Client{},
		baseURL:    trimmed,
		paths:      DefaultPaths(),
		timeout:    defaultTimeout,
		validate:   validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do executes one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, method, endpoint, op string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "commerce client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" request failed").
			WithDetails(map[string]any{"op": op})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed").
			WithDetails(map[string]any{"op": op, "status": resp.StatusCode})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "decode "+op+" response").
			WithDetails(map[string]any{"op": op})
	}
	return nil
}

func (c *Client) validateRequest(op string, payload any) error {
	if err := c.validate.Struct(payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+op+" request")
	}
	return nil
}

// flexibleID accepts ids encoded as JSON numbers or strings.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*f = flexibleID(raw)
	return nil
}
