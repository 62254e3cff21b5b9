package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

const (
	// GoogleUserInfoURL is the OpenID Connect userinfo endpoint.
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
	oauthTimeout     = 10 * time.Second
)

// NewGoogleConfig returns the OAuth2 client configuration for Google sign-in.
func NewGoogleConfig(clientID, clientSecret, callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// GoogleHandler runs the authorization code flow against Google and hands
// the resulting identity to the auth service.
type GoogleHandler struct {
	*AuthHandler

	OAuth       *oauth2.Config
	UserInfoURL string
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// HandleStart godoc
//
//	@Summary		Start Google sign-in
//	@Description	Sets a short-lived state cookie and redirects to Google's consent screen.
//	@Tags			Auth
//	@Success		302
//	@Router			/v1/auth/google [get].
func (h *GoogleHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	state, err := cryptox.GenerateToken(32)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/v1/auth/google",
		MaxAge:   int(oauthStateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		// Lax so the cookie survives the top-level redirect back from Google.
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.OAuth.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback godoc
//
//	@Summary		Google sign-in callback
//	@Description	Exchanges the authorization code, resolves the Google identity to an account (existing link, verified email, or sign-up) and opens a session.
//	@Tags			Auth
//	@Produce		json
//	@Param			code	query		string	true	"Authorization code"
//	@Param			state	query		string	true	"State echoed from the start request"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		403		{object}	authsdk.ErrorResponse	"signup_disabled"
//	@Failure		409		{object}	authsdk.ErrorResponse	"email_taken"
//	@Router			/v1/auth/google/callback [get].
func (h *GoogleHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Info("google sign-in refused", "error", e)
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	}

	ck, err := r.Cookie(oauthStateCookie)
	if err != nil || q.Get("state") == "" || !cryptox.EqualTokens(ck.Value, q.Get("state")) {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "state mismatch").WriteError(w)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/v1/auth/google", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), oauthTimeout)
	defer cancel()

	info, err := h.fetchProfile(ctx, code)
	if err != nil {
		log.Warn("google exchange failed", "err", err)
		authsdk.ErrInvalidCredentials.WriteError(w)
		return
	}

	pair, err := h.Auth.GoogleLogin(ctx, domain.OAuthProfile{
		Provider:      domain.ProviderGoogle,
		ProviderID:    info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		DisplayName:   info.Name,
	}, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair, domain.ProviderGoogle)
}

func (h *GoogleHandler) fetchProfile(ctx context.Context, code string) (googleUserInfo, error) {
	tok, err := h.OAuth.Exchange(ctx, code)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("exchange code: %w", err)
	}

	url := h.UserInfoURL
	if url == "" {
		url = GoogleUserInfoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return googleUserInfo{}, err
	}

	resp, err := h.OAuth.Client(ctx, tok).Do(req)
	if err != nil {
		return googleUserInfo{}, fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&info); err != nil {
		return googleUserInfo{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return googleUserInfo{}, fmt.Errorf("userinfo: missing sub")
	}
	return info, nil
}
