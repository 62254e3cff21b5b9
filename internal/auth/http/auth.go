package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

// AuthHandler serves the /v1/auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Cookies service.CookiePolicy
}

// clientMeta describes the caller for session bookkeeping.
func clientMeta(r *http.Request) domain.ClientMeta {
	return domain.ClientMeta{
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
		DeviceID:  strings.TrimSpace(r.Header.Get("X-Device-Id")),
	}
}

func refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(service.RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// writeTokens sets the refresh cookie and writes the access token body.
func (h *AuthHandler) writeTokens(w http.ResponseWriter, status int, pair domain.TokenPair, method string) {
	http.SetCookie(w, h.Cookies.Cookie(pair.RefreshToken))
	httpx.WriteJSON(w, status, authsdk.TokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		Method:      method,
	})
}

// HandleRegister godoc
//
//	@Summary		Register with email and password
//	@Description	Creates an account with the user role, opens its first session and sets the refresh token in the HttpOnly refresh_token cookie.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			X-Device-Id	header		string					false	"Client device identifier"
//	@Param			request		body		authsdk.RegisterRequest	true	"Account details"
//	@Success		201			{object}	authsdk.TokenResponse
//	@Failure		400			{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		409			{object}	authsdk.ErrorResponse	"email_taken"
//	@Failure		429			{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			201			{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	pair, err := h.Auth.Register(ctx, req.Email, req.Password, req.DisplayName, clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusCreated, pair, "")
}

// HandleLogin godoc
//
//	@Summary		Login with email and password
//	@Description	Issues a bearer access token and sets the refresh token cookie. Unknown emails and wrong passwords answer the same error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			X-Device-Id	header		string					false	"Client device identifier"
//	@Param			request		body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200			{object}	authsdk.TokenResponse
//	@Failure		400			{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		401			{object}	authsdk.ErrorResponse	"invalid_credentials"
//	@Failure		429			{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			200			{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	meta := clientMeta(r)
	if req.DeviceID != "" {
		meta.DeviceID = req.DeviceID
	}

	ctx := context.WithoutCancel(r.Context())
	pair, err := h.Auth.Login(ctx, req.Email, req.Password, meta)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair, "")
}

// HandleRefresh godoc
//
//	@Summary		Rotate the refresh token
//	@Description	Reads the refresh_token cookie, issues a new access token and rotates the refresh token.
//	@Description	Presenting an already rotated token revokes the whole session and answers 401.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.TokenResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		429	{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Header			200	{string}	Set-Cookie				"refresh_token"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	raw := refreshFromCookie(r)
	if raw == "" {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	pair, err := h.Auth.Refresh(ctx, raw, clientMeta(r))
	if err != nil {
		// A rejected token will never work again.
		http.SetCookie(w, h.Cookies.Clear())
		writeServiceError(w, r, err)
		return
	}
	h.writeTokens(w, http.StatusOK, pair, "")
}

// HandleLogout godoc
//
//	@Summary		Logout the current session
//	@Description	Revokes the session named by the refresh cookie when it verifies, then clears the cookie. Always answers ok.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.OKResponse
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if raw := refreshFromCookie(r); raw != "" {
		h.Auth.Logout(context.WithoutCancel(r.Context()), raw, clientMeta(r))
	}
	http.SetCookie(w, h.Cookies.Clear())
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

// HandleMe godoc
//
//	@Summary		Current user profile
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.Auth.Me(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		ID:          p.User.ID,
		Email:       p.User.Email,
		DisplayName: p.User.DisplayName,
		CreatedAt:   p.User.CreatedAt,
		UpdatedAt:   p.User.UpdatedAt,
		Roles:       p.Roles,
	})
}

// HandleListSessions godoc
//
//	@Summary		List sessions
//	@Description	Lists every session of the caller, newest first, including revoked ones.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionsResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/auth/sessions [get].
func (h *AuthHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := h.Auth.ListSessions(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	current := httpx.SessionIDFromContext(ctx)
	out := authsdk.SessionsResponse{Sessions: make([]authsdk.SessionItem, 0, len(sessions))}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, authsdk.SessionItem{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			RevokedAt:  s.RevokedAt,
			IP:         s.IP,
			UserAgent:  s.UserAgent,
			DeviceID:   s.DeviceID,
			Current:    s.ID == current,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleRevokeSession godoc
//
//	@Summary		Revoke a session
//	@Description	Revokes one of the caller's sessions. Unknown ids and sessions of other users are ignored.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	authsdk.OKResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/auth/sessions/{id} [delete].
func (h *AuthHandler) HandleRevokeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := h.Auth.RevokeSession(ctx, httpx.UserIDFromContext(ctx), r.PathValue("id"), clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

// HandleRevokeOthers godoc
//
//	@Summary		Revoke all other sessions
//	@Description	Revokes every session of the caller except the one the access token belongs to.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.RevokeOthersResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/auth/sessions/revoke-others [post].
func (h *AuthHandler) HandleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.Auth.RevokeOtherSessions(ctx, httpx.UserIDFromContext(ctx), httpx.SessionIDFromContext(ctx), clientMeta(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	slogx.FromContext(ctx).Info("revoked other sessions", "count", n)
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokeOthersResponse{OK: true, Revoked: n})
}

// HandleListProviders godoc
//
//	@Summary		List linked identity providers
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ProvidersResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Router			/v1/auth/providers [get].
func (h *AuthHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providers, err := h.Auth.ListProviders(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := authsdk.ProvidersResponse{Providers: make([]authsdk.ProviderItem, 0, len(providers))}
	for _, p := range providers {
		out.Providers = append(out.Providers, authsdk.ProviderItem{
			Provider:   p.Provider,
			ProviderID: p.ProviderID,
			CreatedAt:  p.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
