package domain

import "time"

// RefreshState is the derived state of one refresh token generation.
type RefreshState string

const (
	RefreshIssued  RefreshState = "ISSUED"
	RefreshRotated RefreshState = "ROTATED"
	RefreshRevoked RefreshState = "REVOKED"
	RefreshExpired RefreshState = "EXPIRED"
)

// RefreshToken is one generation of refresh token issued for a session. The
// ID is the "jti" embedded in the signed token.
type RefreshToken struct {
	ID              string
	SessionID       string
	UserID          string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	RotatedAt       *time.Time
	RevokedAt       *time.Time
	ReuseDetectedAt *time.Time
	ReplacedByID    *string
}

// State resolves the record state at now. Rotation and revocation win over
// expiry because they are recorded facts.
func (t RefreshToken) State(now time.Time) RefreshState {
	switch {
	case t.RotatedAt != nil:
		return RefreshRotated
	case t.RevokedAt != nil:
		return RefreshRevoked
	case !now.Before(t.ExpiresAt):
		return RefreshExpired
	default:
		return RefreshIssued
	}
}

// TokenPair is what register, login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshRecordID  string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
