// Package api is the HTTP client for the CV analysis service. It is the only
// place that talks to the network; everything above it sees typed results and
// the closed error variant defined in errors.go.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is used when no base URL is configured.
	DefaultBaseURL = "http://localhost:8000"
	// DefaultTimeout bounds a single request, including uploads.
	DefaultTimeout = 60 * time.Second

	requestIDHeader = "X-Request-ID"
)

// Client issues requests against one analysis service.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option customizes Client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger injects the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api: base url %q has no host", raw)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends one request and reads the whole body. Non-2xx responses become a
// *StatusError; requests that never got a response become a *TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string) (response, error) {
	reqID := uuid.NewString()
	target := c.endpoint(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return response{}, fmt.Errorf("api: %s: build request: %w", op, err)
	}
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	c.logger.Debug("api.request", "op", op, "req_id", reqID, "method", method, "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api.transport_error", "op", op, "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return response{}, &TransportError{Op: op, BaseURL: c.BaseURL(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("api.read_error", "op", op, "req_id", reqID, "error", err)
		return response{}, &TransportError{Op: op, BaseURL: c.BaseURL(), Err: err}
	}
	c.logger.Debug("api.response",
		"op", op,
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode/100 != 2 {
		return response{status: resp.StatusCode, header: resp.Header, body: raw}, newStatusError(op, resp.StatusCode, raw)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, op, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	return decode(op, resp.body, out)
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("api: %s: encode body: %w", op, err)
	}
	resp, err := c.do(ctx, op, http.MethodPost, path, nil, bytes.NewReader(encoded), "application/json")
	if err != nil {
		return err
	}
	return decode(op, resp.body, out)
}

func decode(op string, body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &PayloadError{Op: op, Err: err}
	}
	return nil
}
