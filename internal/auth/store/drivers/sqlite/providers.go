package sqlite

import (
	"context"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/auth/domain"
)

type providersRepo struct {
	db dbtx
}

const providerColumns = `id, user_id, provider, provider_id, created_at`

func scanProvider(row interface{ Scan(...any) error }) (domain.AccountProvider, error) {
	var p domain.AccountProvider
	if err := row.Scan(&p.ID, &p.UserID, &p.Provider, &p.ProviderID, &p.CreatedAt); err != nil {
		return domain.AccountProvider{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *providersRepo) GetProvider(ctx context.Context, provider, providerID string) (domain.AccountProvider, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM account_providers WHERE provider = ? AND provider_id = ?`,
		provider, providerID,
	)
	p, err := scanProvider(row)
	if err != nil {
		return domain.AccountProvider{}, mapNotFound(err)
	}
	return p, nil
}

func (r *providersRepo) CreateProvider(ctx context.Context, p domain.AccountProvider) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_providers (`+providerColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Provider, p.ProviderID, p.CreatedAt.UTC(),
	)
	return mapUnique(err)
}

func (r *providersRepo) ListUserProviders(ctx context.Context, userID string) ([]domain.AccountProvider, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM account_providers WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AccountProvider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
