package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RefreshCookieName is the cookie carrying the refresh token.
const RefreshCookieName = "refresh_token"

// SDKClient is a client for the webtoon API.
// It provides access to unauthenticated operations and creates authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent and DeviceID are sent with every request when set. The
	// server records both on the sessions it opens.
	UserAgent string
	DeviceID  string
}

// NewSDKClient creates a new API client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account and returns a session for it.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	tok, refresh, err := c.tokenCall(ctx, "/v1/auth/register", req, "", http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return newSession(c, tok, refresh), nil
}

// Login authenticates with email and password.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	tok, refresh, err := c.tokenCall(ctx, "/v1/auth/login", req, "", http.StatusOK)
	if err != nil {
		return nil, err
	}
	return newSession(c, tok, refresh), nil
}

// RefreshWith rotates refreshToken and returns the new token response
// together with the refresh token the server set in its cookie.
func (c *SDKClient) RefreshWith(ctx context.Context, refreshToken string) (*TokenResponse, string, error) {
	return c.tokenCall(ctx, "/v1/auth/refresh", nil, refreshToken, http.StatusOK)
}

// LogoutWith ends the session named by refreshToken. The server answers
// ok for any token, including garbage.
func (c *SDKClient) LogoutWith(ctx context.Context, refreshToken string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/logout", nil, c.headers(refreshToken))
	if err != nil {
		return err
	}
	var ok OKResponse
	return decodeJSON(resp, &ok, http.StatusOK)
}

// NewSessionFromTokens creates a session from tokens obtained elsewhere,
// such as the Google callback.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresAt time.Time) *Session {
	return newSession(c, &TokenResponse{AccessToken: accessToken, ExpiresAt: expiresAt}, refreshToken)
}

// tokenCall posts body (if any) to path and returns the decoded token
// response plus the refresh cookie value from Set-Cookie.
func (c *SDKClient) tokenCall(
	ctx context.Context,
	path string,
	body any,
	refreshToken string,
	expectedStatus int,
) (*TokenResponse, string, error) {
	headers := c.headers(refreshToken)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
		headers["Content-Type"] = "application/json"
	}

	var resp *http.Response
	var err error
	if reader != nil {
		resp, err = c.doRequest(ctx, http.MethodPost, path, reader, headers)
	} else {
		resp, err = c.doRequest(ctx, http.MethodPost, path, nil, headers)
	}
	if err != nil {
		return nil, "", err
	}

	refresh := refreshCookie(resp)

	var tok TokenResponse
	if err := decodeJSON(resp, &tok, expectedStatus); err != nil {
		return nil, "", err
	}
	return &tok, refresh, nil
}

func (c *SDKClient) headers(refreshToken string) map[string]string {
	h := map[string]string{}
	if c.UserAgent != "" {
		h["User-Agent"] = c.UserAgent
	}
	if c.DeviceID != "" {
		h["X-Device-Id"] = c.DeviceID
	}
	if refreshToken != "" {
		h["Cookie"] = (&http.Cookie{Name: RefreshCookieName, Value: refreshToken}).String()
	}
	return h
}

func refreshCookie(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == RefreshCookieName && ck.MaxAge >= 0 {
			return ck.Value
		}
	}
	return ""
}
