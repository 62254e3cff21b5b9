package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshColumns = `id, session_id, user_id, expires_at, created_at, rotated_at, revoked_at, reuse_detected_at, replaced_by_id`

func scanRefreshToken(row interface{ Scan(...any) error }) (domain.RefreshToken, error) {
	var (
		t                         domain.RefreshToken
		rotated, revoked, reuseAt sql.NullTime
		replacedBy                sql.NullString
	)
	err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.ExpiresAt, &t.CreatedAt,
		&rotated, &revoked, &reuseAt, &replacedBy)
	if err != nil {
		return domain.RefreshToken{}, err
	}
	t.ExpiresAt = t.ExpiresAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.RotatedAt = mapNullTimePtr(rotated)
	t.RevokedAt = mapNullTimePtr(revoked)
	t.ReuseDetectedAt = mapNullTimePtr(reuseAt)
	t.ReplacedByID = mapNullStringPtr(replacedBy)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (`+refreshColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.SessionID,
		t.UserID,
		t.ExpiresAt.UTC(),
		t.CreatedAt.UTC(),
		mapOptionalTime(t.RotatedAt),
		mapOptionalTime(t.RevokedAt),
		mapOptionalTime(t.ReuseDetectedAt),
		mapOptionalString(t.ReplacedByID),
	)
	return mapUnique(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByID(ctx context.Context, id string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+refreshColumns+` FROM refresh_tokens WHERE id = ?`, id)
	t, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) MarkRotated(ctx context.Context, id, replacedByID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET rotated_at = ?, replaced_by_id = ?
		 WHERE id = ? AND rotated_at IS NULL AND revoked_at IS NULL`,
		at.UTC(), replacedByID, id,
	)
	return affectedOne(res, err)
}

func (r *refreshTokensRepo) MarkReuseDetected(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET reuse_detected_at = ? WHERE id = ? AND reuse_detected_at IS NULL`,
		at.UTC(), id,
	)
	return err
}

func (r *refreshTokensRepo) RevokeSessionRefreshTokens(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ?
		 WHERE session_id = ? AND rotated_at IS NULL AND revoked_at IS NULL`,
		at.UTC(), sessionID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokensRepo) ListSessionRefreshTokens(ctx context.Context, sessionID string) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RefreshToken{}
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *refreshTokensRepo) CountRefreshTokens(ctx context.Context, at time.Time) (live, expired int64, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN expires_at < ? THEN 0 ELSE 1 END), 0),
		        COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0)
		 FROM refresh_tokens`,
		at.UTC(), at.UTC(),
	).Scan(&live, &expired)
	return live, expired, err
}
