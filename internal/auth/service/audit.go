package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/events"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

const auditSource = "webtoon-auth"

// Auditor writes audit entries inside the caller's transaction and, once it
// has committed, forwards them to the event stream.
type Auditor struct {
	Events events.Publisher
	Topic  string
}

func newAuditEntry(
	action domain.AuditAction,
	userID, sessionID string,
	meta domain.ClientMeta,
	metadata map[string]any,
	now time.Time,
) domain.AuditLog {
	return domain.AuditLog{
		ID:        idx.NewAt(now).String(),
		UserID:    optional(userID),
		SessionID: optional(sessionID),
		Action:    action,
		IP:        optional(meta.IP),
		UserAgent: optional(meta.UserAgent),
		Metadata:  metadata,
		CreatedAt: now,
	}
}

// Append persists e through repo and adds it to trail for Publish.
func (a *Auditor) Append(ctx context.Context, repo store.AuditLogs, trail *[]domain.AuditLog, e domain.AuditLog) error {
	if err := repo.AppendAuditLog(ctx, e); err != nil {
		return err
	}
	*trail = append(*trail, e)
	return nil
}

// Publish forwards committed entries. Delivery is best effort: the audit
// table stays the record of truth.
func (a *Auditor) Publish(ctx context.Context, trail []domain.AuditLog) {
	if a == nil || a.Events == nil || a.Topic == "" {
		return
	}
	l := slogx.FromContext(ctx)

	for _, e := range trail {
		ev, err := events.NewEvent("auth."+string(e.Action), deref(e.UserID), "user", auditSource, auditPayload(e))
		if err != nil {
			l.Warn("audit event encode failed", slog.Any("error", err))
			continue
		}
		ev.EventID = e.ID
		if err := a.Events.Publish(context.WithoutCancel(ctx), a.Topic, ev); err != nil {
			l.Warn("audit event publish failed", slog.String("action", string(e.Action)), slog.Any("error", err))
		}
	}
}

type auditEvent struct {
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Action    string         `json:"action"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func auditPayload(e domain.AuditLog) auditEvent {
	return auditEvent{
		UserID:    deref(e.UserID),
		SessionID: deref(e.SessionID),
		Action:    string(e.Action),
		IP:        deref(e.IP),
		UserAgent: deref(e.UserAgent),
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
