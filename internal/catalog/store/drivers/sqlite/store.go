package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store"
)

// Store is the SQLite catalog driver. It can share a database file with the
// auth store since both track migrations in their own table.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const seriesColumns = `id, slug, title, description, status, cover_url, created_at, updated_at`

func scanSeries(row interface{ Scan(...any) error }) (domain.Series, error) {
	var (
		out         domain.Series
		status      string
		desc, cover sql.NullString
	)
	if err := row.Scan(&out.ID, &out.Slug, &out.Title, &desc, &status, &cover, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return domain.Series{}, err
	}
	out.Status = domain.SeriesStatus(status)
	out.Description = nullString(desc)
	out.CoverURL = nullString(cover)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func (s *Store) UpsertSeries(ctx context.Context, in domain.Series) (domain.Series, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series (`+seriesColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			title       = excluded.title,
			description = COALESCE(excluded.description, series.description),
			status      = excluded.status,
			cover_url   = COALESCE(excluded.cover_url, series.cover_url),
			updated_at  = excluded.updated_at`,
		in.ID, in.Slug, in.Title, optString(in.Description), string(in.Status), optString(in.CoverURL),
		in.CreatedAt.UTC(), in.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.Series{}, err
	}
	return s.GetSeriesBySlug(ctx, in.Slug)
}

func (s *Store) GetSeriesBySlug(ctx context.Context, slug string) (domain.Series, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seriesColumns+` FROM series WHERE slug = ?`, slug)
	out, err := scanSeries(row)
	if err != nil {
		return domain.Series{}, mapNotFound(err)
	}
	return out, nil
}

const chapterColumns = `id, series_id, number, title, created_at, updated_at`

func (s *Store) UpsertChapter(ctx context.Context, in domain.Chapter) (domain.Chapter, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapters (`+chapterColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (series_id, number) DO UPDATE SET
			updated_at = excluded.updated_at`,
		in.ID, in.SeriesID, in.Number, optString(in.Title), in.CreatedAt.UTC(), in.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.Chapter{}, err
	}

	var (
		out   domain.Chapter
		title sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE series_id = ? AND number = ?`,
		in.SeriesID, in.Number,
	).Scan(&out.ID, &out.SeriesID, &out.Number, &title, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.Chapter{}, mapNotFound(err)
	}
	out.Title = nullString(title)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

const pageColumns = `id, chapter_id, idx, image_key, created_at, updated_at`

func (s *Store) UpsertPage(ctx context.Context, in domain.Page) (domain.Page, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (chapter_id, idx) DO UPDATE SET
			image_key  = excluded.image_key,
			updated_at = excluded.updated_at`,
		in.ID, in.ChapterID, in.Index, in.ImageKey, in.CreatedAt.UTC(), in.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.Page{}, err
	}

	var out domain.Page
	err = s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE chapter_id = ? AND idx = ?`,
		in.ChapterID, in.Index,
	).Scan(&out.ID, &out.ChapterID, &out.Index, &out.ImageKey, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.Page{}, mapNotFound(err)
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

const refColumns = `id, source, entity, source_key, entity_id, url, created_at, updated_at`

func (s *Store) UpsertExternalRef(ctx context.Context, in domain.ExternalRef) (domain.ExternalRef, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO external_refs (`+refColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, entity, source_key) DO UPDATE SET
			entity_id  = excluded.entity_id,
			url        = COALESCE(excluded.url, external_refs.url),
			updated_at = excluded.updated_at`,
		in.ID, in.Source, in.Entity, in.SourceKey, in.EntityID, optString(in.URL),
		in.CreatedAt.UTC(), in.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.ExternalRef{}, err
	}

	var (
		out domain.ExternalRef
		url sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT `+refColumns+` FROM external_refs WHERE source = ? AND entity = ? AND source_key = ?`,
		in.Source, in.Entity, in.SourceKey,
	).Scan(&out.ID, &out.Source, &out.Entity, &out.SourceKey, &out.EntityID, &url, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return domain.ExternalRef{}, mapNotFound(err)
	}
	out.URL = nullString(url)
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func (s *Store) Counts(ctx context.Context) (domain.Counts, error) {
	var c domain.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM series),
			(SELECT COUNT(*) FROM chapters),
			(SELECT COUNT(*) FROM pages)`,
	).Scan(&c.Series, &c.Chapters, &c.Pages)
	return c, err
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func nullString(ns sql.NullString) *string {
	if ns.Valid {
		v := ns.String
		return &v
	}
	return nil
}

func optString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
