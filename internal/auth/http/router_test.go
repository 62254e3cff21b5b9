package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	authhttp "github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/http"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store/drivers/sqlite"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/cryptox"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

type testServer struct {
	*httptest.Server
	store *sqlite.Store
}

type fakeGoogle struct {
	*httptest.Server
	sub, email string
	verified   bool
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{sub: "g-1001", email: "reader@example.com", verified: true}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"google-at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": g.sub, "email": g.email, "email_verified": g.verified, "name": "Google Reader",
		})
	})
	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Close)
	return g
}

func newTestServer(t *testing.T, google *fakeGoogle) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	keys, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Algorithm:     jwtx.AlgorithmHS256,
		Issuer:        "webtoon-test",
		AccessSecret:  "access-secret-for-tests-0123456789",
		RefreshSecret: "refresh-secret-for-tests-0123456789",
	})
	require.NoError(t, err)

	hasher, err := cryptox.NewHasherWithParams("pepper", cryptox.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
	})
	require.NoError(t, err)

	audit := &service.Auditor{}
	issuer := &service.Issuer{Keys: keys, Issuer: "webtoon-test", AccessTTL: 10 * time.Minute, RefreshTTL: 24 * time.Hour}
	auth := &service.AuthService{
		Store:            st,
		Credentials:      &service.Credentials{Hasher: hasher},
		Issuer:           issuer,
		Ledger:           &service.Ledger{Store: st, Issuer: issuer, Audit: audit},
		Audit:            audit,
		AllowOAuthSignup: true,
		AdminEmail:       "admin@example.com",
	}

	limits := httpx.DefaultRateLimitProfiles()
	limits.Strict = limits.Public

	router := authhttp.NewRouter(keys, "test", st, limits, slogx.Discard())
	router.Auth = auth
	router.Cookies = service.NewCookiePolicy(false, "", issuer.RefreshTTL)
	if google != nil {
		router.Google = &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/v1/auth/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:   google.URL + "/auth",
				TokenURL:  google.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "email", "profile"},
		}
		router.GoogleUserInfoURL = google.URL + "/userinfo"
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: st}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == service.RefreshCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", service.RefreshCookieName)
	return nil
}

func cookieHeader(value string) map[string]string {
	return map[string]string{"Cookie": service.RefreshCookieName + "=" + value}
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func register(t *testing.T, s *testServer, email string) (authsdk.TokenResponse, string) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/v1/auth/register", authsdk.RegisterRequest{
		Email: email, Password: "correct horse battery", DisplayName: "Reader",
	}, map[string]string{"X-Device-Id": "device-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[authsdk.TokenResponse](t, resp), refreshCookie(t, resp).Value
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/v1/auth/register", authsdk.RegisterRequest{
		Email: "Reader@Example.com", Password: "correct horse battery", DisplayName: "Reader",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	ck := refreshCookie(t, resp)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, int((24 * time.Hour).Seconds()), ck.MaxAge)

	tok := decode[authsdk.TokenResponse](t, resp)
	require.NotEmpty(t, tok.AccessToken)

	me := s.do(t, http.MethodGet, "/v1/auth/me", nil, bearer(tok.AccessToken))
	require.Equal(t, http.StatusOK, me.StatusCode)
	profile := decode[authsdk.MeResponse](t, me)
	assert.Equal(t, "reader@example.com", profile.Email)
	assert.Equal(t, []string{"user"}, profile.Roles)
}

func TestRegisterErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	register(t, s, "taken@example.com")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"email taken", authsdk.RegisterRequest{Email: "TAKEN@example.com", Password: "correct horse battery", DisplayName: "X"}, http.StatusConflict, authsdk.ErrorCodeEmailTaken},
		{"bad email", authsdk.RegisterRequest{Email: "nope", Password: "correct horse battery", DisplayName: "X"}, http.StatusBadRequest, authsdk.ErrorCodeValidation},
		{"short password", authsdk.RegisterRequest{Email: "x@example.com", Password: "short", DisplayName: "X"}, http.StatusBadRequest, authsdk.ErrorCodeValidation},
		{"unknown field", map[string]string{"email": "x@example.com", "role": "admin"}, http.StatusBadRequest, authsdk.ErrorCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, "/v1/auth/register", tt.body, nil)
			require.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decode[authsdk.ErrorResponse](t, resp).Error)
		})
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	register(t, s, "reader@example.com")

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		for _, email := range []string{"reader@example.com", "ghost@example.com"} {
			resp := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: email, Password: "wrong password"}, nil)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, authsdk.ErrorCodeInvalidCredentials, decode[authsdk.ErrorResponse](t, resp).Error)
		}
	})

	t.Run("body device id wins over header", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/v1/auth/login",
			authsdk.LoginRequest{Email: "reader@example.com", Password: "correct horse battery", DeviceID: "body-device"},
			map[string]string{"X-Device-Id": "header-device", "User-Agent": "login-test"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		tok := decode[authsdk.TokenResponse](t, resp)

		list := s.do(t, http.MethodGet, "/v1/auth/sessions", nil, bearer(tok.AccessToken))
		require.Equal(t, http.StatusOK, list.StatusCode)
		sessions := decode[authsdk.SessionsResponse](t, list).Sessions
		require.Len(t, sessions, 2)

		current := sessions[0]
		assert.True(t, current.Current)
		require.NotNil(t, current.DeviceID)
		assert.Equal(t, "body-device", *current.DeviceID)
		require.NotNil(t, current.UserAgent)
		assert.Equal(t, "login-test", *current.UserAgent)
		assert.False(t, sessions[1].Current)
	})
}

func TestRefreshRotationAndReuse(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	_, r0 := register(t, s, "reader@example.com")

	first := s.do(t, http.MethodPost, "/v1/auth/refresh", nil, cookieHeader(r0))
	require.Equal(t, http.StatusOK, first.StatusCode)
	r1 := refreshCookie(t, first).Value
	require.NotEqual(t, r0, r1)
	tok := decode[authsdk.TokenResponse](t, first)
	require.NotEmpty(t, tok.AccessToken)

	// Presenting the consumed token again is reuse.
	replay := s.do(t, http.MethodPost, "/v1/auth/refresh", nil, cookieHeader(r0))
	require.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	assert.Equal(t, authsdk.ErrorCodeInvalidToken, decode[authsdk.ErrorResponse](t, replay).Error)
	assert.Equal(t, -1, refreshCookie(t, replay).MaxAge)

	// The whole session is gone, including the legitimate latest token.
	latest := s.do(t, http.MethodPost, "/v1/auth/refresh", nil, cookieHeader(r1))
	require.Equal(t, http.StatusUnauthorized, latest.StatusCode)
}

func TestRefreshWithoutCookie(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/v1/auth/refresh", nil, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/v1/auth/refresh", nil, cookieHeader("garbage"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	tok, r0 := register(t, s, "reader@example.com")

	t.Run("garbage cookie is ok", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/v1/auth/logout", nil, cookieHeader("garbage"))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[authsdk.OKResponse](t, resp).OK)
	})

	t.Run("valid cookie revokes the session", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/v1/auth/logout", nil, cookieHeader(r0))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, -1, refreshCookie(t, resp).MaxAge)

		list := s.do(t, http.MethodGet, "/v1/auth/sessions", nil, bearer(tok.AccessToken))
		require.Equal(t, http.StatusOK, list.StatusCode)
		sessions := decode[authsdk.SessionsResponse](t, list).Sessions
		require.Len(t, sessions, 1)
		assert.NotNil(t, sessions[0].RevokedAt)

		again := s.do(t, http.MethodPost, "/v1/auth/refresh", nil, cookieHeader(r0))
		require.Equal(t, http.StatusUnauthorized, again.StatusCode)
	})
}

func TestSessionManagement(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	a, _ := register(t, s, "reader@example.com")

	var others []authsdk.TokenResponse
	for range 2 {
		resp := s.do(t, http.MethodPost, "/v1/auth/login", authsdk.LoginRequest{Email: "reader@example.com", Password: "correct horse battery"}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		others = append(others, decode[authsdk.TokenResponse](t, resp))
	}

	t.Run("requires bearer", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/v1/auth/sessions", nil, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Bearer")
	})

	t.Run("revoke others keeps the caller", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/v1/auth/sessions/revoke-others", nil, bearer(a.AccessToken))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, decode[authsdk.RevokeOthersResponse](t, resp).Revoked)

		list := s.do(t, http.MethodGet, "/v1/auth/sessions", nil, bearer(a.AccessToken))
		sessions := decode[authsdk.SessionsResponse](t, list).Sessions
		require.Len(t, sessions, 3)
		for _, sess := range sessions {
			if sess.Current {
				assert.Nil(t, sess.RevokedAt)
			} else {
				assert.NotNil(t, sess.RevokedAt)
			}
		}
	})

	t.Run("revoke a session of someone else is a no-op", func(t *testing.T) {
		b, _ := register(t, s, "other@example.com")
		list := s.do(t, http.MethodGet, "/v1/auth/sessions", nil, bearer(b.AccessToken))
		bSession := decode[authsdk.SessionsResponse](t, list).Sessions[0]

		resp := s.do(t, http.MethodDelete, "/v1/auth/sessions/"+bSession.ID, nil, bearer(a.AccessToken))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		list = s.do(t, http.MethodGet, "/v1/auth/sessions", nil, bearer(b.AccessToken))
		assert.Nil(t, decode[authsdk.SessionsResponse](t, list).Sessions[0].RevokedAt)
	})
}

func TestGoogleSignIn(t *testing.T) {
	t.Parallel()
	google := newFakeGoogle(t)
	s := newTestServer(t, google)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	start, err := client.Get(s.URL + "/v1/auth/google")
	require.NoError(t, err)
	_ = start.Body.Close()
	require.Equal(t, http.StatusFound, start.StatusCode)

	loc, err := url.Parse(start.Header.Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), google.URL+"/auth"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	t.Run("state mismatch", func(t *testing.T) {
		resp, err := client.Get(s.URL + "/v1/auth/google/callback?code=good-code&state=forged")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	resp, err := client.Get(s.URL + "/v1/auth/google/callback?code=good-code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tok := decode[authsdk.TokenResponse](t, resp)
	assert.Equal(t, "google", tok.Method)

	providers := s.do(t, http.MethodGet, "/v1/auth/providers", nil, bearer(tok.AccessToken))
	require.Equal(t, http.StatusOK, providers.StatusCode)
	items := decode[authsdk.ProvidersResponse](t, providers).Providers
	require.Len(t, items, 1)
	assert.Equal(t, "google", items[0].Provider)
	assert.Equal(t, "g-1001", items[0].ProviderID)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	live := s.do(t, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, live.StatusCode)
	assert.Equal(t, "test", decode[authsdk.HealthResponse](t, live).Version)

	ready := s.do(t, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, ready.StatusCode)
	h := decode[authsdk.HealthResponse](t, ready)
	require.NotNil(t, h.Checks)
	assert.Equal(t, "ok", h.Checks.Database)
	assert.Empty(t, h.Checks.Queue)

	jwks := s.do(t, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	require.Equal(t, http.StatusOK, jwks.StatusCode)
	assert.Empty(t, decode[authsdk.JWKSResponse](t, jwks).Keys, "HS256 publishes no keys")

	require.NoError(t, s.store.Close())
	ready = s.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)
}

func TestSDKAgainstRouter(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	ctx := context.Background()

	client := authsdk.NewSDKClient(s.URL)
	client.DeviceID = "sdk-device"

	sess, err := client.Register(ctx, authsdk.RegisterRequest{Email: "sdk@example.com", Password: "correct horse battery", DisplayName: "SDK"})
	require.NoError(t, err)

	me, err := sess.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sdk@example.com", me.Email)

	old := sess.RefreshToken()
	require.NoError(t, sess.Refresh(ctx))
	require.NotEqual(t, old, sess.RefreshToken())

	_, _, err = client.RefreshWith(ctx, old)
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	// Reuse revoked the session, so the SDK's current token is dead too.
	require.Error(t, sess.Refresh(ctx))
}
