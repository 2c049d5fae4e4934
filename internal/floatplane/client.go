package floatplane

import (
	"context"
	"floatfetch/internal/apiclient"
	"floatfetch/internal/edge"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.floatplane.com"
	userAgent      = "floatfetch/1.0 (+https://github.com/floatfetch/floatfetch)"
)

// User is the account returned by a successful login.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginResult reports whether the session needs a 2FA token before it is usable.
type LoginResult struct {
	User           User `json:"user"`
	NeedsTwoFactor bool `json:"needs2FA"`
}

// Datacenter locates an edge.
type Datacenter struct {
	CountryCode string `json:"countryCode"`
	RegionCode  string `json:"regionCode"`
}

// Edge is one delivery server as listed by the API.
type Edge struct {
	Hostname       string     `json:"hostname"`
	AllowDownload  bool       `json:"allowDownload"`
	AllowStreaming bool       `json:"allowStreaming"`
	Datacenter     Datacenter `json:"datacenter"`
}

// Label is "<country>-<region>" or empty.
func (e Edge) Label() string {
	parts := make([]string, 0, 2)
	if e.Datacenter.CountryCode != "" {
		parts = append(parts, e.Datacenter.CountryCode)
	}
	if e.Datacenter.RegionCode != "" {
		parts = append(parts, e.Datacenter.RegionCode)
	}
	return strings.Join(parts, "-")
}

type edgesResponse struct {
	Edges []Edge `json:"edges"`
}

// Client is a session-holding API client. The session cookie set by Login is
// reused by every later call.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, opts ...apiclient.Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	opts = append([]apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{Jar: jar, Timeout: 30 * time.Second}),
		apiclient.WithHeader("User-Agent", userAgent),
	}, opts...)
	return &Client{api: apiclient.New(baseURL, opts...)}, nil
}

// Login starts a session with username and password.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var result LoginResult
	if err := c.api.PostJSON(ctx, "/api/v2/auth/login", nil, body, &result); err != nil {
		return LoginResult{}, fmt.Errorf("floatplane login: %w", err)
	}
	return result, nil
}

// CheckFor2FA completes a login that reported NeedsTwoFactor.
func (c *Client) CheckFor2FA(ctx context.Context, token string) (User, error) {
	body := map[string]string{"token": token}
	var result LoginResult
	if err := c.api.PostJSON(ctx, "/api/v2/auth/checkFor2faLogin", nil, body, &result); err != nil {
		return User{}, fmt.Errorf("floatplane 2fa: %w", err)
	}
	return result.User, nil
}

// Edges lists every delivery edge.
func (c *Client) Edges(ctx context.Context) ([]Edge, error) {
	var resp edgesResponse
	if err := c.api.GetJSON(ctx, "/api/v2/edges", nil, &resp); err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	return resp.Edges, nil
}

// ListEdges returns the edges that allow downloads as selector candidates.
func (c *Client) ListEdges(ctx context.Context) ([]edge.Candidate, error) {
	edges, err := c.Edges(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]edge.Candidate, 0, len(edges))
	for _, e := range edges {
		if !e.AllowDownload || e.Hostname == "" {
			continue
		}
		candidates = append(candidates, edge.Candidate{Host: e.Hostname, Label: e.Label()})
	}
	return candidates, nil
}
