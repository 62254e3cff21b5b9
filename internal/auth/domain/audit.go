package domain

import "time"

type AuditAction string

const (
	AuditRegister            AuditAction = "REGISTER"
	AuditLogin               AuditAction = "LOGIN"
	AuditLogout              AuditAction = "LOGOUT"
	AuditRefresh             AuditAction = "REFRESH"
	AuditRefreshReuse        AuditAction = "REFRESH_REUSE"
	AuditRevokeSession       AuditAction = "REVOKE_SESSION"
	AuditRevokeOtherSessions AuditAction = "REVOKE_OTHER_SESSIONS"
	AuditLinkAccount         AuditAction = "LINK_ACCOUNT"
)

// AuditLog is an append-only security event.
type AuditLog struct {
	ID        string
	UserID    *string
	SessionID *string
	Action    AuditAction
	IP        *string
	UserAgent *string
	Metadata  map[string]any
	CreatedAt time.Time
}
