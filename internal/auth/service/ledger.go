package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/tracing"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

var tracer = tracing.Tracer("webtoon/auth")

// errRotationLost aborts the rotation transaction when the conditional
// update finds the record already consumed.
var errRotationLost = errors.New("rotation lost")

// Ledger owns sessions and refresh token generations.
type Ledger struct {
	Store  store.Store
	Issuer *Issuer
	Audit  *Auditor
	Now    func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Refresh rotates a refresh token. Replaying a consumed generation, or any
// token whose record or session is gone, revokes the whole session.
func (l *Ledger) Refresh(ctx context.Context, raw string, meta domain.ClientMeta) (pair domain.TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.refresh")
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		observe("refresh", err)
	}()

	claims, err := l.Issuer.DecodeRefresh(raw)
	if err != nil {
		slogx.FromContext(ctx).Debug("refresh token rejected", slog.Any("error", err))
		return domain.TokenPair{}, err
	}
	span.SetAttributes(attribute.String("session_id", claims.SID))

	record, err := l.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	missingRecord := errors.Is(err, store.ErrNotFound)
	if err != nil && !missingRecord {
		return domain.TokenPair{}, err
	}

	session, err := l.Store.Sessions().GetSessionByID(ctx, claims.SID)
	missingSession := errors.Is(err, store.ErrNotFound)
	if err != nil && !missingSession {
		return domain.TokenPair{}, err
	}

	switch {
	case missingRecord, record.SessionID != claims.SID, record.UserID != claims.Subject:
		return domain.TokenPair{}, l.reuse(ctx, CauseMissingRecord, claims, nil, meta)
	case missingSession:
		return domain.TokenPair{}, l.reuse(ctx, CauseMissingSession, claims, nil, meta)
	case session.Revoked():
		return domain.TokenPair{}, l.reuse(ctx, CauseSessionRevoked, claims, nil, meta)
	}

	now := l.now()
	switch record.State(now) {
	case domain.RefreshRotated, domain.RefreshRevoked:
		return domain.TokenPair{}, l.reuse(ctx, CauseTokenConsumed, claims, &record, meta)
	case domain.RefreshExpired:
		return domain.TokenPair{}, ErrExpired
	}

	var trail []domain.AuditLog
	err = l.Store.WithTx(ctx, func(tx store.Tx) error {
		roles, err := tx.Roles().ListUserRoleCodes(ctx, record.UserID)
		if err != nil {
			return err
		}

		next, err := l.Issuer.Issue(ctx, tx.RefreshTokens(), record.UserID, session.ID, roles)
		if err != nil {
			return err
		}

		ok, err := tx.RefreshTokens().MarkRotated(ctx, record.ID, next.RefreshRecordID, now)
		if err != nil {
			return err
		}
		if !ok {
			return errRotationLost
		}

		if err := tx.Sessions().TouchSession(ctx, session.ID, now); err != nil {
			return err
		}

		entry := newAuditEntry(domain.AuditRefresh, record.UserID, session.ID, meta,
			map[string]any{"jti": record.ID, "replaced_by": next.RefreshRecordID}, now)
		if err := l.Audit.Append(ctx, tx.AuditLogs(), &trail, entry); err != nil {
			return err
		}

		pair = next
		return nil
	})
	if errors.Is(err, errRotationLost) {
		return domain.TokenPair{}, l.reuse(ctx, CauseRotationRace, claims, &record, meta)
	}
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	l.Audit.Publish(ctx, trail)
	return pair, nil
}

// reuse revokes the session named by the token, stamps the record when one
// was consumed and records why. It always reports ErrReuseDetected unless the
// store itself failed.
func (l *Ledger) reuse(
	ctx context.Context,
	cause string,
	claims *jwtx.RefreshClaims,
	record *domain.RefreshToken,
	meta domain.ClientMeta,
) error {
	now := l.now()
	refreshReuseTotal.WithLabelValues(cause).Inc()
	slogx.FromContext(ctx).Warn("refresh token reuse detected",
		slog.String("cause", cause),
		slog.String("user_id", claims.Subject),
		slog.String("session_id", claims.SID),
		slog.String("jti", claims.ID),
	)

	var trail []domain.AuditLog
	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := revokeSessionTx(ctx, tx, claims.SID, now); err != nil {
			return err
		}
		if record != nil {
			if err := tx.RefreshTokens().MarkReuseDetected(ctx, record.ID, now); err != nil {
				return err
			}
		}
		entry := newAuditEntry(domain.AuditRefreshReuse, claims.Subject, claims.SID, meta,
			map[string]any{"cause": cause, "jti": claims.ID}, now)
		return l.Audit.Append(ctx, tx.AuditLogs(), &trail, entry)
	})
	if err != nil {
		return fmt.Errorf("record refresh reuse: %w", err)
	}

	l.Audit.Publish(ctx, trail)
	return ErrReuseDetected
}

// revokeSessionTx revokes a session and its active refresh records. It
// reports whether the session moved to revoked by this call.
func revokeSessionTx(ctx context.Context, tx store.Tx, sessionID string, now time.Time) (bool, error) {
	revoked, err := tx.Sessions().RevokeSession(ctx, sessionID, now)
	if err != nil {
		return false, err
	}
	if _, err := tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, sessionID, now); err != nil {
		return false, err
	}
	return revoked, nil
}

// OpenSession creates a session for userID inside tx.
func (l *Ledger) OpenSession(ctx context.Context, tx store.Tx, userID string, meta domain.ClientMeta, now time.Time) (domain.Session, error) {
	s := domain.Session{
		ID:         idx.NewAt(now).String(),
		UserID:     userID,
		CreatedAt:  now,
		LastUsedAt: now,
		IP:         optional(meta.IP),
		UserAgent:  optional(meta.UserAgent),
		DeviceID:   optional(meta.DeviceID),
	}
	if err := tx.Sessions().CreateSession(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// RevokeSession revokes sessionID if userID owns it. A session owned by
// someone else, or already revoked, is left alone without an error.
func (l *Ledger) RevokeSession(ctx context.Context, userID, sessionID string, meta domain.ClientMeta) error {
	_, err := l.revokeOwned(ctx, domain.AuditRevokeSession, userID, sessionID, meta)
	observe("revoke_session", err)
	return err
}

func (l *Ledger) revokeOwned(
	ctx context.Context,
	action domain.AuditAction,
	userID, sessionID string,
	meta domain.ClientMeta,
) (bool, error) {
	now := l.now()

	var (
		trail   []domain.AuditLog
		revoked bool
	)
	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		ok, err := tx.Sessions().RevokeUserSession(ctx, userID, sessionID, now)
		if err != nil {
			return err
		}
		if ok {
			if _, err := tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, sessionID, now); err != nil {
				return err
			}
		}
		revoked = ok

		entry := newAuditEntry(action, userID, sessionID, meta, map[string]any{"revoked": ok}, now)
		return l.Audit.Append(ctx, tx.AuditLogs(), &trail, entry)
	})
	if err != nil {
		return false, err
	}

	l.Audit.Publish(ctx, trail)
	return revoked, nil
}

// RevokeOtherSessions revokes every active session of userID except
// exceptSessionID and returns how many were revoked.
func (l *Ledger) RevokeOtherSessions(ctx context.Context, userID, exceptSessionID string, meta domain.ClientMeta) (int, error) {
	now := l.now()

	var (
		trail []domain.AuditLog
		ids   []string
	)
	err := l.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.Sessions().RevokeOtherUserSessions(ctx, userID, exceptSessionID, now)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, id, now); err != nil {
				return err
			}
		}

		entry := newAuditEntry(domain.AuditRevokeOtherSessions, userID, exceptSessionID, meta,
			map[string]any{"revoked": len(ids), "session_ids": ids}, now)
		return l.Audit.Append(ctx, tx.AuditLogs(), &trail, entry)
	})
	observe("revoke_other_sessions", err)
	if err != nil {
		return 0, err
	}

	l.Audit.Publish(ctx, trail)
	return len(ids), nil
}

// ListSessions returns the sessions of userID, newest first.
func (l *Ledger) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	return l.Store.Sessions().ListSessionsByUser(ctx, userID)
}
