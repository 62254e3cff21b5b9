package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store"
)

// Store is the PostgreSQL catalog driver.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) UpsertSeries(ctx context.Context, in domain.Series) (domain.Series, error) {
	query := `
		INSERT INTO series (id, slug, title, description, status, cover_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE SET
			title       = EXCLUDED.title,
			description = COALESCE(EXCLUDED.description, series.description),
			status      = EXCLUDED.status,
			cover_url   = COALESCE(EXCLUDED.cover_url, series.cover_url),
			updated_at  = EXCLUDED.updated_at
		RETURNING id, slug, title, description, status, cover_url, created_at, updated_at`

	out, err := scanSeries(s.db.QueryRow(ctx, query,
		in.ID, in.Slug, in.Title, in.Description, string(in.Status), in.CoverURL, in.CreatedAt, in.UpdatedAt,
	))
	if err != nil {
		return domain.Series{}, fmt.Errorf("upsert series: %w", err)
	}
	return out, nil
}

func (s *Store) GetSeriesBySlug(ctx context.Context, slug string) (domain.Series, error) {
	query := `
		SELECT id, slug, title, description, status, cover_url, created_at, updated_at
		FROM series WHERE slug = $1`

	out, err := scanSeries(s.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Series{}, store.ErrNotFound
		}
		return domain.Series{}, fmt.Errorf("get series by slug: %w", err)
	}
	return out, nil
}

func scanSeries(row pgx.Row) (domain.Series, error) {
	var (
		out    domain.Series
		status string
	)
	err := row.Scan(&out.ID, &out.Slug, &out.Title, &out.Description, &status, &out.CoverURL, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.Series{}, err
	}
	out.Status = domain.SeriesStatus(status)
	return out, nil
}

func (s *Store) UpsertChapter(ctx context.Context, in domain.Chapter) (domain.Chapter, error) {
	query := `
		INSERT INTO chapters (id, series_id, number, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (series_id, number) DO UPDATE SET
			updated_at = EXCLUDED.updated_at
		RETURNING id, series_id, number, title, created_at, updated_at`

	var out domain.Chapter
	err := s.db.QueryRow(ctx, query,
		in.ID, in.SeriesID, in.Number, in.Title, in.CreatedAt, in.UpdatedAt,
	).Scan(&out.ID, &out.SeriesID, &out.Number, &out.Title, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("upsert chapter: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertPage(ctx context.Context, in domain.Page) (domain.Page, error) {
	query := `
		INSERT INTO pages (id, chapter_id, idx, image_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chapter_id, idx) DO UPDATE SET
			image_key  = EXCLUDED.image_key,
			updated_at = EXCLUDED.updated_at
		RETURNING id, chapter_id, idx, image_key, created_at, updated_at`

	var out domain.Page
	err := s.db.QueryRow(ctx, query,
		in.ID, in.ChapterID, in.Index, in.ImageKey, in.CreatedAt, in.UpdatedAt,
	).Scan(&out.ID, &out.ChapterID, &out.Index, &out.ImageKey, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.Page{}, fmt.Errorf("upsert page: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertExternalRef(ctx context.Context, in domain.ExternalRef) (domain.ExternalRef, error) {
	query := `
		INSERT INTO external_refs (id, source, entity, source_key, entity_id, url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, entity, source_key) DO UPDATE SET
			entity_id  = EXCLUDED.entity_id,
			url        = COALESCE(EXCLUDED.url, external_refs.url),
			updated_at = EXCLUDED.updated_at
		RETURNING id, source, entity, source_key, entity_id, url, created_at, updated_at`

	var out domain.ExternalRef
	err := s.db.QueryRow(ctx, query,
		in.ID, in.Source, in.Entity, in.SourceKey, in.EntityID, in.URL, in.CreatedAt, in.UpdatedAt,
	).Scan(&out.ID, &out.Source, &out.Entity, &out.SourceKey, &out.EntityID, &out.URL, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.ExternalRef{}, fmt.Errorf("upsert external ref: %w", err)
	}
	return out, nil
}

func (s *Store) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM series),
			(SELECT COUNT(*) FROM chapters),
			(SELECT COUNT(*) FROM pages)`,
	).Scan(&c.Series, &c.Chapters, &c.Pages)
	if err != nil {
		return domain.Counts{}, fmt.Errorf("count catalog rows: %w", err)
	}
	return c, nil
}
