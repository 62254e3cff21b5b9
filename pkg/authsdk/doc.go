/*
Package authsdk provides a client SDK for the webtoon API and the wire types
shared with its HTTP handlers.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations (health, register, login) and session creation
  - Session: authenticated operations with automatic token refresh

	client := authsdk.NewSDKClient("https://api.example.com")

	health, err := client.GetLiveness(ctx)

	session, err := client.Login(ctx, authsdk.LoginRequest{
		Email:    "reader@example.com",
		Password: "correct horse battery",
	})

	me, err := session.Me(ctx)
	sessions, err := session.ListSessions(ctx)
	revoked, err := session.RevokeOtherSessions(ctx)

# Refresh Tokens

The server never puts the refresh token in a response body; it sets it in
the HttpOnly refresh_token cookie. The SDK reads that cookie from the
response and sends it back on refresh and logout.

Every refresh rotates the token. Presenting an already rotated token is
treated as theft: the server revokes the whole session and answers 401, so
a Session must never be copied and refreshed from two places.

# Automatic Token Refresh

Session methods call getValidToken() internally, which:

 1. Checks if the access token is still valid (with 30-second buffer)
 2. If expired, rotates the refresh token to obtain a new access token
 3. Updates the session with the new tokens

# Error Handling

Failed calls return *APIError carrying the HTTP status and the error code
from the body:

	_, err := client.Login(ctx, req)
	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeInvalidCredentials {
		// wrong email or password
	}

# Thread Safety

Sessions are safe for concurrent use. Refresh is serialised by the session
lock, so concurrent callers never present the same refresh token twice.
*/
package authsdk
