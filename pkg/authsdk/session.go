package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrNoRefreshToken is returned when a session needs to refresh but holds
// no refresh token.
var ErrNoRefreshToken = errors.New("access token expired and no refresh token available")

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tok *TokenResponse, refreshToken string) *Session {
	return &Session{
		client:       client,
		accessToken:  tok.AccessToken,
		refreshToken: refreshToken,
		// Refresh 30 seconds before actual expiry.
		expiresAt: tok.ExpiresAt.Add(-30 * time.Second),
	}
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh rotates the refresh token now, regardless of access token expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return ErrNoRefreshToken
	}

	tok, refresh, err := s.client.RefreshWith(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = tok.AccessToken
	s.refreshToken = refresh
	s.expiresAt = tok.ExpiresAt.Add(-30 * time.Second)
	return nil
}

// Logout ends this session on the server and forgets the tokens.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.LogoutWith(ctx, s.refreshToken); err != nil {
		return err
	}
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	return nil
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// Me returns the caller's profile and roles.
func (s *Session) Me(ctx context.Context) (*MeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var me MeResponse
	if err := decodeJSON(resp, &me, http.StatusOK); err != nil {
		return nil, err
	}
	return &me, nil
}

// ListSessions returns the caller's sessions, newest first.
func (s *Session) ListSessions(ctx context.Context) ([]SessionItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var out SessionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// RevokeSession revokes one of the caller's sessions.
func (s *Session) RevokeSession(ctx context.Context, sessionID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/auth/sessions/"+url.PathEscape(sessionID), nil, nil)
	if err != nil {
		return err
	}
	var ok OKResponse
	return decodeJSON(resp, &ok, http.StatusOK)
}

// RevokeOtherSessions revokes every session of the caller except this one.
func (s *Session) RevokeOtherSessions(ctx context.Context) (int, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/sessions/revoke-others", nil, nil)
	if err != nil {
		return 0, err
	}

	var out RevokeOthersResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Revoked, nil
}

// ListProviders returns the identity providers linked to the caller.
func (s *Session) ListProviders(ctx context.Context) ([]ProviderItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/auth/providers", nil, nil)
	if err != nil {
		return nil, err
	}

	var out ProvidersResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

// Do sends an authenticated request to any API path and decodes the JSON
// response into target when the status matches expectedStatus.
func (s *Session) Do(ctx context.Context, method, path string, body any, target any, expectedStatus int) error {
	resp, err := s.doAuthJSON(ctx, method, path, body)
	if err != nil {
		return err
	}
	if target == nil {
		return checkStatus(resp, expectedStatus)
	}
	return decodeJSON(resp, target, expectedStatus)
}
