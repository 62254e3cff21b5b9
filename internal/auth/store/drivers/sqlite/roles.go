package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
)

type rolesRepo struct {
	db dbtx
}

func (r *rolesRepo) getRoleByCode(ctx context.Context, code string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, created_at FROM roles WHERE code = ?`, code,
	).Scan(&role.ID, &role.Code, &role.CreatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	role.CreatedAt = role.CreatedAt.UTC()
	return role, nil
}

func (r *rolesRepo) EnsureRole(ctx context.Context, code string, now time.Time) (domain.Role, error) {
	role, err := r.getRoleByCode(ctx, code)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO roles (id, code, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO NOTHING`,
		idx.New().String(), code, now.UTC(),
	)
	if err != nil {
		return domain.Role{}, err
	}
	return r.getRoleByCode(ctx, code)
}

func (r *rolesRepo) AssignRole(ctx context.Context, userID, roleID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, role_id) DO NOTHING`,
		userID, roleID, now.UTC(),
	)
	return err
}

func (r *rolesRepo) ListUserRoleCodes(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.code FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = ?
		 ORDER BY r.code`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
