package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
)

// TestRegisterLoginRefresh walks the password flow:
// 1. Register and read the profile
// 2. Login again with the same credentials
// 3. Refresh and verify both tokens rotated
func TestRegisterLoginRefresh(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	registered := registerUser(t, client, "reader@example.com")
	me, err := registered.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "reader@example.com", me.Email)
	require.Equal(t, []string{"user"}, me.Roles)

	session, err := client.Login(ctx, authsdk.LoginRequest{Email: "Reader@Example.com", Password: userPassword})
	require.NoError(t, err, "login is case insensitive on email")

	oldAccess, oldRefresh := session.AccessToken(), session.RefreshToken()
	require.NotEmpty(t, oldRefresh, "refresh token travels in the cookie")

	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, oldAccess, session.AccessToken(), "access token should be rotated")
	require.NotEqual(t, oldRefresh, session.RefreshToken(), "refresh token should be rotated")

	_, err = session.Me(ctx)
	require.NoError(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	client := setupAPIContainer(t)

	registerUser(t, client, "reader@example.com")

	_, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:       "READER@example.com",
		Password:    userPassword,
		DisplayName: "Copycat",
	})
	assertAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeEmailTaken)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	registerUser(t, client, "reader@example.com")

	_, err := client.Login(ctx, authsdk.LoginRequest{Email: "reader@example.com", Password: "wrong-password"})
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)

	_, err = client.Login(ctx, authsdk.LoginRequest{Email: "nobody@example.com", Password: "wrong-password"})
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
}

// TestRefreshReuseRevokesSession presents an already rotated token. The
// whole session is revoked, so the newest token stops working too.
func TestRefreshReuseRevokesSession(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	session := registerUser(t, client, "reader@example.com")
	stolen := session.RefreshToken()
	require.NoError(t, session.Refresh(ctx))

	_, _, err := client.RefreshWith(ctx, stolen)
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	_, _, err = client.RefreshWith(ctx, session.RefreshToken())
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	sessions, err := session.ListSessions(ctx)
	require.NoError(t, err, "the access token stays valid until it expires")
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].RevokedAt)
}

func TestLogoutEndsRefresh(t *testing.T) {
	client := setupAPIContainer(t)
	ctx := t.Context()

	session := registerUser(t, client, "reader@example.com")
	refresh := session.RefreshToken()

	require.NoError(t, session.Logout(ctx))

	_, _, err := client.RefreshWith(ctx, refresh)
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	// Logout answers ok for anything.
	require.NoError(t, client.LogoutWith(ctx, "not-a-token"))
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	client := setupAPIContainer(t)

	session := registerUser(t, client, "reader@example.com")

	_, _, err := client.RefreshWith(t.Context(), session.AccessToken())
	assertAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}
