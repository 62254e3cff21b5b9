package store

import (
	"context"
	"errors"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement this.
// It exposes sub-repositories to keep concerns tidy and testable, and so a
// transaction can only be started from the root.
type Store interface {
	Users() Users
	Roles() Roles
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	Providers() Providers
	AuditLogs() AuditLogs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches on the lowercased email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. A duplicate email yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	CountUsers(ctx context.Context) (int64, error)
}

type Roles interface {
	// EnsureRole returns the role with code, creating it when missing.
	EnsureRole(ctx context.Context, code string, now time.Time) (domain.Role, error)

	// AssignRole links a user to a role. Assigning twice is a no-op.
	AssignRole(ctx context.Context, userID, roleID string, now time.Time) error

	// ListUserRoleCodes returns the role codes of a user, sorted.
	ListUserRoleCodes(ctx context.Context, userID string) ([]string, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// ListSessionsByUser returns every session of the user, newest first.
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error)

	// TouchSession bumps last_used_at.
	TouchSession(ctx context.Context, id string, at time.Time) error

	// RevokeSession sets revoked_at if it is still NULL and reports whether
	// this call revoked it.
	RevokeSession(ctx context.Context, id string, at time.Time) (bool, error)

	// RevokeUserSession is RevokeSession scoped to the owning user.
	RevokeUserSession(ctx context.Context, userID, id string, at time.Time) (bool, error)

	// RevokeOtherUserSessions revokes every active session of the user except
	// exceptID and returns the ids it revoked.
	RevokeOtherUserSessions(ctx context.Context, userID, exceptID string, at time.Time) ([]string, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error)

	// MarkRotated records the successor on a record that is neither rotated
	// nor revoked, in a single conditional update. It reports false when the
	// record was already consumed, which is how a concurrent refresh loses.
	MarkRotated(ctx context.Context, id, replacedByID string, at time.Time) (bool, error)

	// MarkReuseDetected stamps reuse_detected_at once.
	MarkReuseDetected(ctx context.Context, id string, at time.Time) error

	// RevokeSessionRefreshTokens revokes every record of the session that is
	// neither rotated nor revoked.
	RevokeSessionRefreshTokens(ctx context.Context, sessionID string, at time.Time) (int64, error)

	// ListSessionRefreshTokens returns the lineage of a session, oldest first.
	ListSessionRefreshTokens(ctx context.Context, sessionID string) ([]domain.RefreshToken, error)

	// CountRefreshTokens reports how many records are unexpired and how many
	// expired at the given time. Records are never deleted.
	CountRefreshTokens(ctx context.Context, at time.Time) (live, expired int64, err error)
}

type Providers interface {
	GetProvider(ctx context.Context, provider, providerID string) (domain.AccountProvider, error)

	// CreateProvider links an identity. A duplicate (provider, provider_id)
	// yields ErrAlreadyExists.
	CreateProvider(ctx context.Context, p domain.AccountProvider) error

	ListUserProviders(ctx context.Context, userID string) ([]domain.AccountProvider, error)
}

// AuditFilter narrows ListAuditLogs. Zero fields match everything.
type AuditFilter struct {
	UserID    string
	SessionID string
	Action    domain.AuditAction
	Limit     int
}

type AuditLogs interface {
	AppendAuditLog(ctx context.Context, e domain.AuditLog) error

	// ListAuditLogs returns matching entries, newest first.
	ListAuditLogs(ctx context.Context, f AuditFilter) ([]domain.AuditLog, error)
}
