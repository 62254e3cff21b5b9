package service

import (
	"context"
	"fmt"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

// Issuer mints access/refresh pairs. Every refresh token it signs has a
// matching RefreshTokenRecord written through the repository it was given.
type Issuer struct {
	Keys       *jwtx.KeyManager
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue creates the refresh record for a new generation and signs both
// tokens. Pass a transaction-scoped repository to tie the record to the
// caller's transaction.
func (i *Issuer) Issue(
	ctx context.Context,
	repo store.RefreshTokens,
	userID, sessionID string,
	roles []string,
) (domain.TokenPair, error) {
	now := i.now()

	record := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(i.RefreshTTL),
		CreatedAt: now,
	}
	if err := repo.CreateRefreshToken(ctx, record); err != nil {
		return domain.TokenPair{}, fmt.Errorf("persist refresh record: %w", err)
	}

	access, err := i.Keys.Access.Sign(jwtx.NewAccessClaims(userID, sessionID, roles, i.Issuer, i.AccessTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := i.Keys.Refresh.Sign(jwtx.NewRefreshClaims(userID, sessionID, record.ID, i.Issuer, i.RefreshTTL, now))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshRecordID:  record.ID,
		SessionID:        sessionID,
		AccessExpiresAt:  now.Add(i.AccessTTL),
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// DecodeRefresh verifies a raw refresh token. Any failure, including an
// access token presented in its place, is ErrInvalidToken.
func (i *Issuer) DecodeRefresh(raw string) (*jwtx.RefreshClaims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := i.Keys.RefreshVerifier.VerifyRefresh(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// DecodeAccess verifies a raw access token.
func (i *Issuer) DecodeAccess(raw string) (*jwtx.AccessClaims, error) {
	claims, err := i.Keys.AccessVerifier.VerifyAccess(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
