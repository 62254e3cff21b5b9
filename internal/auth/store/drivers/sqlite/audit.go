package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
)

type auditLogsRepo struct {
	db dbtx
}

const defaultAuditLimit = 100

func (r *auditLogsRepo) AppendAuditLog(ctx context.Context, e domain.AuditLog) error {
	var meta sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, session_id, action, ip, user_agent, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		mapOptionalString(e.UserID),
		mapOptionalString(e.SessionID),
		string(e.Action),
		mapOptionalString(e.IP),
		mapOptionalString(e.UserAgent),
		meta,
		e.CreatedAt.UTC(),
	)
	return mapUnique(err)
}

func (r *auditLogsRepo) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]domain.AuditLog, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}

	q := `SELECT id, user_id, session_id, action, ip, user_agent, metadata, created_at FROM audit_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AuditLog{}
	for rows.Next() {
		var (
			e                    domain.AuditLog
			userID, sessionID    sql.NullString
			ip, ua, meta, action sql.NullString
		)
		if err := rows.Scan(&e.ID, &userID, &sessionID, &action, &ip, &ua, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.UserID = mapNullStringPtr(userID)
		e.SessionID = mapNullStringPtr(sessionID)
		e.Action = domain.AuditAction(action.String)
		e.IP = mapNullStringPtr(ip)
		e.UserAgent = mapNullStringPtr(ua)
		e.CreatedAt = e.CreatedAt.UTC()
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
