package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	pair := h.register(t, "New@Example.com")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, claims.SID)
	require.Equal(t, []string{domain.RoleUser}, claims.Roles)

	refresh, err := h.keys.RefreshVerifier.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, pair.RefreshRecordID, refresh.ID)

	record, err := h.store.RefreshTokens().GetRefreshTokenByID(ctx, refresh.ID)
	require.NoError(t, err)
	require.Equal(t, pair.SessionID, record.SessionID)
	require.True(t, record.ExpiresAt.Equal(pair.RefreshExpiresAt))

	logs, err := h.store.AuditLogs().ListAuditLogs(ctx, store.AuditFilter{UserID: claims.Subject})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.AuditRegister, logs[0].Action)
	require.Equal(t, pair.SessionID, *logs[0].SessionID)
	require.Equal(t, testMeta.IP, *logs[0].IP)

	require.Equal(t, []string{"auth.REGISTER"}, h.events.Types())
}

func TestRegisterEmailTaken(t *testing.T) {
	h := newHarness(t)
	h.register(t, "taken@example.com")

	_, err := h.auth.Register(context.Background(), "TAKEN@example.com ", "another password", "Other", testMeta)
	require.ErrorIs(t, err, ErrEmailTaken)

	n, err := h.store.Users().CountUsers(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestRegisterAdminEmail(t *testing.T) {
	h := newHarness(t)
	pair := h.register(t, "Admin@Example.com")

	claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{domain.RoleAdmin, domain.RoleUser}, claims.Roles)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.register(t, "login@example.com")

	t.Run("opens a new session", func(t *testing.T) {
		pair, err := h.auth.Login(ctx, " LOGIN@example.com", "correct horse battery", testMeta)
		require.NoError(t, err)
		require.NotEqual(t, first.SessionID, pair.SessionID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.auth.Login(ctx, "login@example.com", "wrong", testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user gets the same error", func(t *testing.T) {
		_, err := h.auth.Login(ctx, "nobody@example.com", "correct horse battery", testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("account without password", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, h.store.Users().CreateUser(ctx, domain.User{
			ID: "01J0000000000000000000NOPW", Email: "oauth-only@example.com",
			DisplayName: "o", CreatedAt: now, UpdatedAt: now,
		}))
		_, err := h.auth.Login(ctx, "oauth-only@example.com", "", testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "rotate@example.com")

	h.clock.Advance(time.Minute)
	b, err := h.auth.Refresh(ctx, a.RefreshToken, testMeta)
	require.NoError(t, err)
	require.Equal(t, a.SessionID, b.SessionID)
	require.NotEqual(t, a.RefreshRecordID, b.RefreshRecordID)

	old, err := h.store.RefreshTokens().GetRefreshTokenByID(ctx, a.RefreshRecordID)
	require.NoError(t, err)
	require.Equal(t, domain.RefreshRotated, old.State(h.clock.Now()))
	require.Equal(t, b.RefreshRecordID, *old.ReplacedByID)
	require.Equal(t, 1, h.activeRecords(t, a.SessionID))

	sess := h.session(t, a.SessionID)
	require.True(t, sess.LastUsedAt.Equal(h.clock.Now()))

	h.clock.Advance(time.Minute)
	c, err := h.auth.Refresh(ctx, b.RefreshToken, testMeta)
	require.NoError(t, err)
	require.Equal(t, 1, h.activeRecords(t, a.SessionID))

	lineage, err := h.store.RefreshTokens().ListSessionRefreshTokens(ctx, a.SessionID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	require.Equal(t, c.RefreshRecordID, lineage[2].ID)
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "reuse@example.com")

	b, err := h.auth.Refresh(ctx, a.RefreshToken, testMeta)
	require.NoError(t, err)

	_, err = h.auth.Refresh(ctx, a.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrReuseDetected)
	require.True(t, h.session(t, a.SessionID).Revoked())

	replayed, err := h.store.RefreshTokens().GetRefreshTokenByID(ctx, a.RefreshRecordID)
	require.NoError(t, err)
	require.NotNil(t, replayed.ReuseDetectedAt)

	// The successor was never used, but the session is dead.
	_, err = h.auth.Refresh(ctx, b.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrReuseDetected)
	require.Zero(t, h.activeRecords(t, a.SessionID))

	reuse, err := h.store.AuditLogs().ListAuditLogs(ctx, store.AuditFilter{
		SessionID: a.SessionID,
		Action:    domain.AuditRefreshReuse,
	})
	require.NoError(t, err)
	require.Len(t, reuse, 2)
	require.Equal(t, CauseSessionRevoked, reuse[0].Metadata["cause"])
	require.Equal(t, CauseTokenConsumed, reuse[1].Metadata["cause"])
}

func TestRefreshMissingRecordIsReuse(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "missing@example.com")

	_, err := h.store.DB().ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, a.RefreshRecordID)
	require.NoError(t, err)

	_, err = h.auth.Refresh(ctx, a.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrReuseDetected)
	require.True(t, h.session(t, a.SessionID).Revoked())
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "race@example.com")

	const callers = 4
	var (
		wg      sync.WaitGroup
		results = make([]error, callers)
	)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.auth.Refresh(ctx, a.RefreshToken, testMeta)
		}(i)
	}
	wg.Wait()

	var wins, reuses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrReuseDetected):
			reuses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, callers-1, reuses)

	lineage, err := h.store.RefreshTokens().ListSessionRefreshTokens(ctx, a.SessionID)
	require.NoError(t, err)
	require.Len(t, lineage, 2, "losers must not leave successor records behind")
	require.True(t, h.session(t, a.SessionID).Revoked())
}

func TestRefreshExpiredRecordKeepsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "expired@example.com")

	_, err := h.store.DB().ExecContext(ctx,
		`UPDATE refresh_tokens SET expires_at = ? WHERE id = ?`,
		h.clock.Now().Add(-time.Second), a.RefreshRecordID,
	)
	require.NoError(t, err)

	_, err = h.auth.Refresh(ctx, a.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrExpired)
	require.False(t, h.session(t, a.SessionID).Revoked())
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "bad@example.com")

	t.Run("garbage", func(t *testing.T) {
		_, err := h.auth.Refresh(ctx, "not-a-jwt", testMeta)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("access token in place of refresh token", func(t *testing.T) {
		_, err := h.auth.Refresh(ctx, a.AccessToken, testMeta)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token in place of access token", func(t *testing.T) {
		_, err := h.auth.Issuer.DecodeAccess(a.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token past its signed expiry", func(t *testing.T) {
		h.clock.Advance(31 * 24 * time.Hour)
		defer h.clock.Advance(-31 * 24 * time.Hour)
		_, err := h.auth.Refresh(ctx, a.RefreshToken, testMeta)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	require.False(t, h.session(t, a.SessionID).Revoked())
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.register(t, "logout@example.com")

	require.False(t, h.auth.Logout(ctx, "", testMeta))
	require.False(t, h.auth.Logout(ctx, "garbage", testMeta))
	require.False(t, h.session(t, a.SessionID).Revoked())

	require.True(t, h.auth.Logout(ctx, a.RefreshToken, testMeta))
	require.True(t, h.session(t, a.SessionID).Revoked())
	require.Zero(t, h.activeRecords(t, a.SessionID))

	// Second logout is a no-op.
	require.False(t, h.auth.Logout(ctx, a.RefreshToken, testMeta))
}

func TestRevokeSessionScopedToOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.register(t, "alice@example.com")
	bob := h.register(t, "bob@example.com")

	bobClaims, err := h.keys.AccessVerifier.VerifyAccess(bob.AccessToken)
	require.NoError(t, err)
	aliceClaims, err := h.keys.AccessVerifier.VerifyAccess(alice.AccessToken)
	require.NoError(t, err)

	require.NoError(t, h.auth.RevokeSession(ctx, bobClaims.Subject, alice.SessionID, testMeta))
	require.False(t, h.session(t, alice.SessionID).Revoked())

	require.NoError(t, h.auth.RevokeSession(ctx, aliceClaims.Subject, alice.SessionID, testMeta))
	require.True(t, h.session(t, alice.SessionID).Revoked())
	require.NoError(t, h.auth.RevokeSession(ctx, aliceClaims.Subject, alice.SessionID, testMeta))

	_, err = h.auth.Refresh(ctx, alice.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrReuseDetected)
}

func TestRevokeOtherSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "multi@example.com")

	h.clock.Advance(time.Second)
	s1, err := h.auth.Login(ctx, "multi@example.com", "correct horse battery", testMeta)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	s2, err := h.auth.Login(ctx, "multi@example.com", "correct horse battery", testMeta)
	require.NoError(t, err)

	claims, err := h.keys.AccessVerifier.VerifyAccess(s2.AccessToken)
	require.NoError(t, err)

	n, err := h.auth.RevokeOtherSessions(ctx, claims.Subject, claims.SID, testMeta)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sessions, err := h.auth.ListSessions(ctx, claims.Subject)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	require.Equal(t, s2.SessionID, sessions[0].ID)

	var active []string
	for _, s := range sessions {
		if !s.Revoked() {
			active = append(active, s.ID)
		}
	}
	require.Equal(t, []string{s2.SessionID}, active)

	_, err = h.auth.Refresh(ctx, s1.RefreshToken, testMeta)
	require.ErrorIs(t, err, ErrReuseDetected)
}

func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("links an existing account by verified email", func(t *testing.T) {
		h := newHarness(t)
		pw := h.register(t, "linked@example.com")
		pwClaims, err := h.keys.AccessVerifier.VerifyAccess(pw.AccessToken)
		require.NoError(t, err)

		profile := domain.OAuthProfile{
			Provider: domain.ProviderGoogle, ProviderID: "g-1",
			Email: "Linked@example.com", EmailVerified: true, DisplayName: "Linked",
		}
		pair, err := h.auth.GoogleLogin(ctx, profile, testMeta)
		require.NoError(t, err)

		claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, pwClaims.Subject, claims.Subject)

		n, err := h.store.Users().CountUsers(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		providers, err := h.auth.ListProviders(ctx, claims.Subject)
		require.NoError(t, err)
		require.Len(t, providers, 1)

		// Second login resolves through the link even if the email changed.
		profile.Email = "changed@example.com"
		again, err := h.auth.GoogleLogin(ctx, profile, testMeta)
		require.NoError(t, err)
		againClaims, err := h.keys.AccessVerifier.VerifyAccess(again.AccessToken)
		require.NoError(t, err)
		require.Equal(t, pwClaims.Subject, againClaims.Subject)

		links, err := h.store.AuditLogs().ListAuditLogs(ctx, store.AuditFilter{
			UserID: claims.Subject, Action: domain.AuditLinkAccount,
		})
		require.NoError(t, err)
		require.Len(t, links, 1)
	})

	t.Run("creates an account when signup is allowed", func(t *testing.T) {
		h := newHarness(t)
		pair, err := h.auth.GoogleLogin(ctx, domain.OAuthProfile{ProviderID: "g-2", DisplayName: "Anon"}, testMeta)
		require.NoError(t, err)

		claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, []string{domain.RoleUser}, claims.Roles)

		u, err := h.store.Users().GetUserByID(ctx, claims.Subject)
		require.NoError(t, err)
		require.Equal(t, "google_g-2@example.invalid", u.Email)
		require.True(t, u.HasPassword())

		_, err = h.auth.Login(ctx, u.Email, "", testMeta)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("signup disabled", func(t *testing.T) {
		h := newHarness(t)
		h.auth.AllowOAuthSignup = false
		_, err := h.auth.GoogleLogin(ctx, domain.OAuthProfile{ProviderID: "g-3", Email: "new@example.com"}, testMeta)
		require.ErrorIs(t, err, ErrSignupDisabled)

		n, err := h.store.Users().CountUsers(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("unverified email does not take over an account", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, "victim@example.com")
		_, err := h.auth.GoogleLogin(ctx, domain.OAuthProfile{ProviderID: "g-4", Email: "victim@example.com"}, testMeta)
		require.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pair := h.register(t, "me@example.com")
	claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	p, err := h.auth.Me(ctx, claims.Subject)
	require.NoError(t, err)
	require.Equal(t, "me@example.com", p.User.Email)
	require.Equal(t, []string{domain.RoleUser}, p.Roles)

	_, err = h.auth.Me(ctx, "unknown")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEnsureDefaultRoleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pair := h.register(t, "roles@example.com")
	claims, err := h.keys.AccessVerifier.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	u, err := h.store.Users().GetUserByID(ctx, claims.Subject)
	require.NoError(t, err)

	require.NoError(t, h.store.WithTx(ctx, func(tx store.Tx) error {
		return h.auth.grantDefaultRoles(ctx, tx, u, h.clock.Now())
	}))

	var n int
	require.NoError(t, h.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles WHERE user_id = ?`, u.ID).Scan(&n))
	require.Equal(t, 1, n)
}

func TestCookiePolicy(t *testing.T) {
	t.Parallel()

	dev := NewCookiePolicy(false, "", 30*24*time.Hour)
	c := dev.Cookie("value")
	require.Equal(t, RefreshCookieName, c.Name)
	require.True(t, c.HttpOnly)
	require.False(t, c.Secure)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 30*24*60*60, c.MaxAge)

	prod := NewCookiePolicy(true, "webtoon.example", time.Hour)
	c = prod.Cookie("value")
	require.True(t, c.Secure)
	require.Equal(t, "webtoon.example", c.Domain)

	cleared := prod.Clear()
	require.Equal(t, -1, cleared.MaxAge)
	require.Empty(t, cleared.Value)
}
