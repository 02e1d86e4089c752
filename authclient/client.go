// Package authclient wraps the EasyBase auth API: login, refresh, logout and
// session management. Failures surface as the SDK's typed errors so callers
// can branch on errors.Is without inspecting HTTP details.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	autherrors "github.com/easybase/go-portal-auth/internal/errors"
	"github.com/easybase/go-portal-auth/token"
)

// DefaultBasePath is the auth API mount point on the EasyBase backend.
const DefaultBasePath = "/easy-base/api/auth"

// DefaultTimeout bounds every request; a timeout surfaces as ErrNetwork
// through the same path as a connection failure.
const DefaultTimeout = 10 * time.Second

// TokenProvider supplies the current access token for bearer attachment.
// Returning "" leaves the request unauthenticated.
type TokenProvider func() string

// Client performs auth API calls against a single EasyBase backend.
type Client struct {
	baseURL       string
	basePath      string
	httpClient    *http.Client
	tokenProvider TokenProvider
	log           zerolog.Logger
}

// Option modifies a Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithTokenProvider sets the source of the bearer token attached to
// authenticated requests.
func WithTokenProvider(provider TokenProvider) Option {
	return func(c *Client) { c.tokenProvider = provider }
}

// WithBasePath overrides the auth API mount point.
func WithBasePath(basePath string) Option {
	return func(c *Client) { c.basePath = basePath }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates an auth API client for the given backend base URL.
func New(baseURL string, options ...Option) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		basePath:   DefaultBasePath,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        zerolog.Nop(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Login exchanges operator credentials for a token set.
func (c *Client) Login(ctx context.Context, userName, password string) (*TokenResponse, error) {
	var response TokenResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{UserName: userName, Password: password}, &response, autherrors.ErrInvalidCredentials)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Client.Login] login request failed")
	}
	return &response, nil
}

// RefreshToken mints a new token set from a refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var response TokenResponse
	err := c.do(ctx, http.MethodPost, "/refresh", refreshRequest{RefreshToken: refreshToken}, &response, autherrors.ErrInvalidRefreshToken)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Client.RefreshToken] refresh request failed")
	}
	return &response, nil
}

// Logout revokes the given server-side session. Callers treat failures as
// non-fatal; local state is cleared regardless.
func (c *Client) Logout(ctx context.Context, sessionID string) error {
	err := c.do(ctx, http.MethodPost, "/logout", logoutRequest{SessionID: sessionID}, nil, autherrors.ErrServer)
	return autherrors.Wrapf(err, "[Client.Logout] logout request failed")
}

// Sessions lists the active sessions of the current user.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := c.do(ctx, http.MethodGet, "/sessions", nil, &sessions, autherrors.ErrServer)
	if err != nil {
		return nil, autherrors.Wrapf(err, "[Client.Sessions] session list failed")
	}
	return sessions, nil
}

// RevokeSession revokes one session by ID.
func (c *Client) RevokeSession(ctx context.Context, sessionID string) error {
	err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil, nil, autherrors.ErrSessionNotFound)
	return autherrors.Wrapf(err, "[Client.RevokeSession] revoke failed")
}

// RevokeAllSessions revokes every session of the current user.
func (c *Client) RevokeAllSessions(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/sessions/revoke-all", nil, nil, autherrors.ErrServer)
	return autherrors.Wrapf(err, "[Client.RevokeAllSessions] revoke-all failed")
}

// do performs one JSON round trip. clientErr is the sentinel reported for
// 4xx responses of this operation (e.g. invalid credentials on login).
func (c *Client) do(ctx context.Context, method, path string, body, target any, clientErr error) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := c.baseURL + c.basePath + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachBearer(req)

	c.log.Debug().Str("method", method).Str("url", url).Msg("auth API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return autherrors.NewAuthError(autherrors.ErrNetwork, "network error - please check your connection", "NETWORK_ERROR", 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp, clientErr)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}

// attachBearer adds the Authorization header when a well-formed access token
// is available. Tokens failing the three-segment format check are never sent.
func (c *Client) attachBearer(req *http.Request) {
	if c.tokenProvider == nil {
		return
	}
	accessToken := c.tokenProvider()
	if token.IsValidFormat(accessToken) {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}

// statusError converts a non-2xx response into a typed AuthError. 4xx maps to
// the operation's client sentinel, 5xx to ErrServer.
func (c *Client) statusError(resp *http.Response, clientErr error) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	sentinel := clientErr
	if resp.StatusCode >= 500 {
		sentinel = autherrors.ErrServer
	}

	message := body.Message
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	c.log.Debug().Int("status", resp.StatusCode).Str("code", body.Code).Msg("auth API error response")

	return autherrors.NewAuthError(sentinel, message, body.Code, resp.StatusCode)
}
