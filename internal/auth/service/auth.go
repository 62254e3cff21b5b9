package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

// AuthService composes credentials, the ledger and the issuer into the
// account flows exposed over HTTP.
type AuthService struct {
	Store       store.Store
	Credentials *Credentials
	Issuer      *Issuer
	Ledger      *Ledger
	Audit       *Auditor

	// AllowOAuthSignup lets an unknown identity provider subject create an
	// account on first login.
	AllowOAuthSignup bool

	// AdminEmail is granted the admin role when it registers.
	AdminEmail string

	Now func() time.Time
}

// Profile is the caller's own account view.
type Profile struct {
	User  domain.User
	Roles []string
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account, its first session and tokens in one
// transaction.
func (s *AuthService) Register(
	ctx context.Context,
	email, password, displayName string,
	meta domain.ClientMeta,
) (pair domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { span.End(); observe("register", err) }()

	email = normalizeEmail(email)
	if _, err := s.Store.Users().GetUserByEmail(ctx, email); err == nil {
		return domain.TokenPair{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.TokenPair{}, err
	}

	hash, err := s.Credentials.Hash(password)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: &hash,
		DisplayName:  strings.TrimSpace(displayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var trail []domain.AuditLog
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, user); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}
		if err := s.grantDefaultRoles(ctx, tx, user, now); err != nil {
			return err
		}

		p, err := s.startSession(ctx, tx, user.ID, domain.AuditRegister, meta, now, &trail)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Publish(ctx, trail)
	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID))
	return pair, nil
}

// Login authenticates a password account and opens a new session.
func (s *AuthService) Login(
	ctx context.Context,
	email, password string,
	meta domain.ClientMeta,
) (pair domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { span.End(); observe("login", err) }()

	var found *domain.User
	u, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	switch {
	case err == nil:
		found = &u
	case !errors.Is(err, store.ErrNotFound):
		return domain.TokenPair{}, err
	}

	if err := s.Credentials.Check(found, password); err != nil {
		slogx.FromContext(ctx).Info("login rejected", slog.Any("error", err))
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	var trail []domain.AuditLog
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := s.startSession(ctx, tx, found.ID, domain.AuditLogin, meta, now, &trail)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Publish(ctx, trail)
	return pair, nil
}

// GoogleLogin resolves an identity provider profile to a user: first by an
// existing link, then by verified email (linking it), then by creating an
// account when sign-up is allowed.
func (s *AuthService) GoogleLogin(
	ctx context.Context,
	profile domain.OAuthProfile,
	meta domain.ClientMeta,
) (pair domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.google_login")
	defer func() { span.End(); observe("google_login", err) }()

	if profile.Provider == "" {
		profile.Provider = domain.ProviderGoogle
	}
	if strings.TrimSpace(profile.ProviderID) == "" {
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	now := s.now()
	var trail []domain.AuditLog
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		userID, err := s.resolveProfile(ctx, tx, profile, meta, now, &trail)
		if err != nil {
			return err
		}
		p, err := s.startSession(ctx, tx, userID, domain.AuditLogin, meta, now, &trail)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Publish(ctx, trail)
	return pair, nil
}

func (s *AuthService) resolveProfile(
	ctx context.Context,
	tx store.Tx,
	profile domain.OAuthProfile,
	meta domain.ClientMeta,
	now time.Time,
	trail *[]domain.AuditLog,
) (string, error) {
	link, err := tx.Providers().GetProvider(ctx, profile.Provider, profile.ProviderID)
	switch {
	case err == nil:
		if _, err := tx.Users().GetUserByID(ctx, link.UserID); err == nil {
			return link.UserID, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	case !errors.Is(err, store.ErrNotFound):
		return "", err
	}

	email := normalizeEmail(profile.Email)
	if email != "" {
		existing, err := tx.Users().GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if !profile.EmailVerified {
				return "", ErrEmailTaken
			}
			if err := s.link(ctx, tx, existing.ID, profile, now); err != nil {
				return "", err
			}
			entry := newAuditEntry(domain.AuditLinkAccount, existing.ID, "", meta,
				map[string]any{"provider": profile.Provider}, now)
			if err := s.Audit.Append(ctx, tx.AuditLogs(), trail, entry); err != nil {
				return "", err
			}
			return existing.ID, nil
		case !errors.Is(err, store.ErrNotFound):
			return "", err
		}
	}

	if !s.AllowOAuthSignup {
		return "", ErrSignupDisabled
	}

	if email == "" {
		email = fmt.Sprintf("%s_%s@example.invalid", profile.Provider, profile.ProviderID)
	}
	placeholder, err := s.Credentials.Placeholder()
	if err != nil {
		return "", err
	}

	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		PasswordHash: &placeholder,
		DisplayName:  strings.TrimSpace(profile.DisplayName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrEmailTaken
		}
		return "", err
	}
	if err := s.grantDefaultRoles(ctx, tx, user, now); err != nil {
		return "", err
	}
	if err := s.link(ctx, tx, user.ID, profile, now); err != nil {
		return "", err
	}

	entry := newAuditEntry(domain.AuditRegister, user.ID, "", meta,
		map[string]any{"provider": profile.Provider}, now)
	if err := s.Audit.Append(ctx, tx.AuditLogs(), trail, entry); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *AuthService) link(ctx context.Context, tx store.Tx, userID string, profile domain.OAuthProfile, now time.Time) error {
	return tx.Providers().CreateProvider(ctx, domain.AccountProvider{
		ID:         idx.NewAt(now).String(),
		UserID:     userID,
		Provider:   profile.Provider,
		ProviderID: profile.ProviderID,
		CreatedAt:  now,
	})
}

// grantDefaultRoles assigns the user role, plus admin for the configured
// admin email. Both steps are idempotent.
func (s *AuthService) grantDefaultRoles(ctx context.Context, tx store.Tx, u domain.User, now time.Time) error {
	codes := []string{domain.RoleUser}
	if s.AdminEmail != "" && normalizeEmail(s.AdminEmail) == u.Email {
		codes = append(codes, domain.RoleAdmin)
	}

	for _, code := range codes {
		role, err := tx.Roles().EnsureRole(ctx, code, now)
		if err != nil {
			return err
		}
		if err := tx.Roles().AssignRole(ctx, u.ID, role.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// startSession opens a session, audits action against it and issues the
// first token pair for it.
func (s *AuthService) startSession(
	ctx context.Context,
	tx store.Tx,
	userID string,
	action domain.AuditAction,
	meta domain.ClientMeta,
	now time.Time,
	trail *[]domain.AuditLog,
) (domain.TokenPair, error) {
	session, err := s.Ledger.OpenSession(ctx, tx, userID, meta, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	entry := newAuditEntry(action, userID, session.ID, meta, nil, now)
	if err := s.Audit.Append(ctx, tx.AuditLogs(), trail, entry); err != nil {
		return domain.TokenPair{}, err
	}

	roles, err := tx.Roles().ListUserRoleCodes(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return s.Issuer.Issue(ctx, tx.RefreshTokens(), userID, session.ID, roles)
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, raw string, meta domain.ClientMeta) (domain.TokenPair, error) {
	return s.Ledger.Refresh(ctx, raw, meta)
}

// Logout revokes the session named by a refresh token. A token that does not
// verify is a normal outcome and leaves everything untouched. It reports
// whether a session was revoked.
func (s *AuthService) Logout(ctx context.Context, raw string, meta domain.ClientMeta) bool {
	l := slogx.FromContext(ctx)

	claims, err := s.Issuer.DecodeRefresh(raw)
	if err != nil {
		l.Debug("logout without a valid refresh token", slog.Any("error", err))
		observe("logout", nil)
		return false
	}

	revoked, err := s.Ledger.revokeOwned(ctx, domain.AuditLogout, claims.Subject, claims.SID, meta)
	observe("logout", err)
	if err != nil {
		l.Error("logout revoke failed", slog.String("session_id", claims.SID), slog.Any("error", err))
		return false
	}
	return revoked
}

func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string, meta domain.ClientMeta) error {
	return s.Ledger.RevokeSession(ctx, userID, sessionID, meta)
}

func (s *AuthService) RevokeOtherSessions(ctx context.Context, userID, exceptSessionID string, meta domain.ClientMeta) (int, error) {
	return s.Ledger.RevokeOtherSessions(ctx, userID, exceptSessionID, meta)
}

func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.Ledger.ListSessions(ctx, userID)
}

// ListProviders returns the identity providers linked to userID.
func (s *AuthService) ListProviders(ctx context.Context, userID string) ([]domain.AccountProvider, error) {
	return s.Store.Providers().ListUserProviders(ctx, userID)
}

// Me returns the profile and current role codes of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (Profile, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Profile{}, ErrSessionNotFound
		}
		return Profile{}, err
	}
	roles, err := s.Store.Roles().ListUserRoleCodes(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{User: u, Roles: roles}, nil
}
