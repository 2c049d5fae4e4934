package plex

import (
	"context"
	"errors"
	"floatfetch/internal/apiclient"
	"floatfetch/internal/utils"
	"fmt"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL = "https://plex.tv"
	Product        = "floatfetch"

	headerToken    = "X-Plex-Token"
	headerClientID = "X-Plex-Client-Identifier"
	headerProduct  = "X-Plex-Product"
)

// ErrNoConnection is returned when none of a server's connection URIs answered.
var ErrNoConnection = errors.New("no working connection")

// Client talks to plex.tv and, through resources, to individual servers.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a plex.tv client. clientID identifies this install and
// should be stable across runs.
func NewClient(baseURL, clientID string, opts ...apiclient.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]apiclient.Option{
		apiclient.WithHeader(headerClientID, clientID),
		apiclient.WithHeader(headerProduct, Product),
	}, opts...)
	return &Client{api: apiclient.New(baseURL, opts...)}
}

type signInResponse struct {
	User struct {
		AuthToken string `json:"authToken"`
	} `json:"user"`
}

// SignIn exchanges a username and password for an auth token.
func (c *Client) SignIn(ctx context.Context, username, password string) (string, error) {
	req, err := c.api.NewRequest(ctx, http.MethodPost, "/users/sign_in.json", nil, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(username, password)

	var resp signInResponse
	if err := c.api.DoJSON(req, &resp); err != nil {
		return "", fmt.Errorf("plex sign in: %w", err)
	}
	if resp.User.AuthToken == "" {
		return "", errors.New("plex sign in: response carried no token")
	}
	return resp.User.AuthToken, nil
}

type userResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// VerifyToken checks that token is accepted by plex.tv and returns the
// account's username.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	var user userResponse
	if err := c.api.GetJSON(ctx, "/api/v2/user", map[string]string{headerToken: token}, &user); err != nil {
		return "", fmt.Errorf("verify plex token: %w", err)
	}
	if user.Username != "" {
		return user.Username, nil
	}
	return user.Email, nil
}

// Account returns the account for token.
func (c *Client) Account(token string) *MyPlexAccount {
	return &MyPlexAccount{client: c, token: token}
}

// MyPlexAccount is the plex.tv implementation of Account.
type MyPlexAccount struct {
	client *Client
	token  string
}

type resourceJSON struct {
	Name             string           `json:"name"`
	Provides         string           `json:"provides"`
	ClientIdentifier string           `json:"clientIdentifier"`
	AccessToken      string           `json:"accessToken"`
	Connections      []connectionJSON `json:"connections"`
}

type connectionJSON struct {
	URI   string `json:"uri"`
	Local bool   `json:"local"`
}

// Resources implements Account.
func (a *MyPlexAccount) Resources(ctx context.Context) ([]Resource, error) {
	var raw []resourceJSON
	err := a.client.api.GetJSON(ctx, "/api/v2/resources?includeHttps=1", map[string]string{headerToken: a.token}, &raw)
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(raw))
	for _, r := range raw {
		token := r.AccessToken
		if token == "" {
			token = a.token
		}
		resources = append(resources, &httpResource{
			api:          a.client.api,
			name:         r.Name,
			capabilities: ParseCapabilities(r.Provides),
			token:        token,
			connections:  r.Connections,
		})
	}
	return resources, nil
}

type httpResource struct {
	api          *apiclient.Client
	name         string
	capabilities CapabilitySet
	token        string
	connections  []connectionJSON
}

func (r *httpResource) Name() string                { return r.name }
func (r *httpResource) Capabilities() CapabilitySet { return r.capabilities }

// Connect tries each connection URI in listed order and keeps the first that
// answers /identity.
func (r *httpResource) Connect(ctx context.Context) (ConnectedServer, error) {
	var errs []error
	for _, conn := range r.connections {
		base := strings.TrimRight(conn.URI, "/")
		if base == "" {
			continue
		}
		err := r.api.GetJSON(ctx, base+"/identity", map[string]string{headerToken: r.token}, nil)
		if err == nil {
			utils.Debug("Plex server %q connected via %s", r.name, base)
			return &httpServer{api: r.api, baseURL: base, token: r.token}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", base, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: server %q lists no connections", ErrNoConnection, r.name)
	}
	return nil, fmt.Errorf("%w: %w", ErrNoConnection, errors.Join(errs...))
}

type httpServer struct {
	api     *apiclient.Client
	baseURL string
	token   string
}

func (s *httpServer) Library(ctx context.Context) (Library, error) {
	return s, nil
}

type sectionsResponse struct {
	MediaContainer struct {
		Directory []Section `json:"Directory"`
	} `json:"MediaContainer"`
}

// Sections implements Library.
func (s *httpServer) Sections(ctx context.Context) ([]Section, error) {
	var resp sectionsResponse
	if err := s.api.GetJSON(ctx, s.baseURL+"/library/sections", map[string]string{headerToken: s.token}, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// Service discovers sections for a token using plex.tv.
type Service struct {
	Client  *Client
	Options DiscoverOptions
}

// DiscoverShowSections builds the account for token and runs discovery.
func (s *Service) DiscoverShowSections(ctx context.Context, token string) (Discovery, error) {
	return DiscoverShowSections(ctx, s.Client.Account(token), s.Options)
}
