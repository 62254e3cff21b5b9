package store

import (
	"context"
	"errors"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the catalog data access interface. Every write is an upsert keyed
// by the natural key of the row, so replaying the same input converges on
// the same rows. IDs and timestamps on the argument are used only when the
// row is created; the returned value is the stored row.
type Store interface {
	// UpsertSeries inserts or updates by slug. A nil Description or CoverURL
	// leaves the stored value untouched.
	UpsertSeries(ctx context.Context, s domain.Series) (domain.Series, error)
	GetSeriesBySlug(ctx context.Context, slug string) (domain.Series, error)

	// UpsertChapter inserts or updates by (series_id, number). The title is
	// only written on insert.
	UpsertChapter(ctx context.Context, c domain.Chapter) (domain.Chapter, error)

	// UpsertPage inserts or updates the image key by (chapter_id, index).
	UpsertPage(ctx context.Context, p domain.Page) (domain.Page, error)

	// UpsertExternalRef inserts or updates by (source, entity, source_key).
	UpsertExternalRef(ctx context.Context, r domain.ExternalRef) (domain.ExternalRef, error)

	Counts(ctx context.Context) (domain.Counts, error)

	ApplyMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
