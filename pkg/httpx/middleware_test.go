package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

func newKeys(t *testing.T) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Issuer:        "webtoon-test",
		AccessSecret:  "access-secret-0123456789",
		RefreshSecret: "refresh-secret-0123456789",
	})
	require.NoError(t, err)
	return km
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAuthnMiddleware(t *testing.T) {
	km := newKeys(t)
	now := time.Now().UTC()

	access, err := km.Access.Sign(jwtx.NewAccessClaims("user-1", "sess-1", []string{"admin"}, "webtoon-test", time.Minute, now))
	require.NoError(t, err)
	refresh, err := km.Refresh.Sign(jwtx.NewRefreshClaims("user-1", "sess-1", "jti", "webtoon-test", time.Hour, now))
	require.NoError(t, err)

	var gotUser, gotSession string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = httpx.UserIDFromContext(r.Context())
		gotSession = httpx.SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), httpx.AuthnMiddleware(km.AccessVerifier), httpx.RequireAnyRole("admin"))

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"refresh token as bearer", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid", "Bearer " + access, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusUnauthorized {
				require.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Bearer"))
			}
		})
	}

	require.Equal(t, "user-1", gotUser)
	require.Equal(t, "sess-1", gotSession)
}

func TestRequireAnyRole_Forbidden(t *testing.T) {
	km := newKeys(t)
	access, err := km.Access.Sign(jwtx.NewAccessClaims("user-1", "sess-1", []string{"user"}, "webtoon-test", time.Minute, time.Now()))
	require.NoError(t, err)

	h := httpx.Chain(okHandler(), httpx.AuthnMiddleware(km.AccessVerifier), httpx.RequireAnyRole("admin"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	h = httpx.Chain(okHandler(), httpx.AuthnMiddleware(km.AccessVerifier), httpx.RequireAllRoles("user", "admin"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"email":"a@example.com","password":"password1"}`, false},
		{"bad email", `{"email":"nope","password":"password1"}`, true},
		{"short password", `{"email":"a@example.com","password":"short"}`, true},
		{"unknown field", `{"email":"a@example.com","password":"password1","admin":true}`, true},
		{"empty body", ``, true},
		{"malformed", `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var dst body
			err := httpx.DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				require.ErrorIs(t, err, httpx.ErrBadRequest)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a@example.com", dst.Email)
		})
	}
}
