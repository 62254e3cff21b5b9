package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, created_at, last_used_at, revoked_at, ip, user_agent, device_id`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s         domain.Session
		revokedAt sql.NullTime
		ip, ua    sql.NullString
		device    sql.NullString
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.LastUsedAt, &revokedAt, &ip, &ua, &device); err != nil {
		return domain.Session{}, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastUsedAt = s.LastUsedAt.UTC()
	s.RevokedAt = mapNullTimePtr(revokedAt)
	s.IP = mapNullStringPtr(ip)
	s.UserAgent = mapNullStringPtr(ua)
	s.DeviceID = mapNullStringPtr(device)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.UserID,
		s.CreatedAt.UTC(),
		s.LastUsedAt.UTC(),
		mapOptionalTime(s.RevokedAt),
		mapOptionalString(s.IP),
		mapOptionalString(s.UserAgent),
		mapOptionalString(s.DeviceID),
	)
	return mapUnique(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionsRepo) TouchSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET last_used_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at.UTC(), id,
	)
	return affectedOne(res, err)
}

func (r *sessionsRepo) RevokeUserSession(ctx context.Context, userID, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL`,
		at.UTC(), id, userID,
	)
	return affectedOne(res, err)
}

func (r *sessionsRepo) RevokeOtherUserSessions(
	ctx context.Context,
	userID, exceptID string,
	at time.Time,
) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE sessions SET revoked_at = ?
		 WHERE user_id = ? AND id <> ? AND revoked_at IS NULL
		 RETURNING id`,
		at.UTC(), userID, exceptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
