package domain

import "time"

// Session is one authenticated client instance and the unit of revocation.
type Session struct {
	ID         string
	UserID     string
	CreatedAt  time.Time
	LastUsedAt time.Time
	RevokedAt  *time.Time
	IP         *string
	UserAgent  *string
	DeviceID   *string
}

// Revoked reports whether the session has been revoked.
func (s Session) Revoked() bool { return s.RevokedAt != nil }

// ClientMeta describes the caller of an auth operation.
type ClientMeta struct {
	IP        string
	UserAgent string
	DeviceID  string
}
