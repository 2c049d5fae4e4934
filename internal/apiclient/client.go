package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"floatfetch/internal/utils"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

var (
	// ErrUnauthorized matches any 401 or 403 StatusError.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnexpectedContentType is returned when a JSON body was expected.
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// Client is a JSON-over-HTTP client bound to one base URL.
type Client struct {
	BaseURL string
	Headers map[string]string

	client  *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (cookie jars, test servers).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRateLimit paces requests to rps per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.Headers[key] = value
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Headers: map[string]string{"Accept": "application/json"},
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// ResolveURL joins path onto the base URL. Absolute URLs are returned as is.
func (c *Client) ResolveURL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

// NewRequest builds a request with the client's default headers. A non-nil
// body is encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, headers map[string]string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), reader)
	if err != nil {
		return nil, err
	}

	for key, val := range c.Headers {
		req.Header.Set(key, val)
	}
	for key, val := range headers {
		req.Header.Set(key, val)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do sends req after waiting on the rate limiter.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	utils.Debug("HTTP %s %s", req.Method, req.URL.Redacted())
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON sends req and decodes a JSON response into out. Non-2xx responses
// become *StatusError. out may be nil to discard the body.
func (c *Client) DoJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	mediaType, _ := httpheader.ContentType(resp.Header)
	if mediaType != "" && mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return fmt.Errorf("%w: %s from %s", ErrUnexpectedContentType, mediaType, req.URL.Redacted())
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// GetJSON is a shorthand for a GET decoded into out.
func (c *Client) GetJSON(ctx context.Context, path string, headers map[string]string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, headers, nil)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}

// PostJSON is a shorthand for a POST with a JSON body decoded into out.
func (c *Client) PostJSON(ctx context.Context, path string, headers map[string]string, body, out any) error {
	req, err := c.NewRequest(ctx, http.MethodPost, path, headers, body)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}
