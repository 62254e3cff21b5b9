package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store"
)

func setupStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock, nil), mock
}

var seriesCols = []string{"id", "slug", "title", "description", "status", "cover_url", "created_at", "updated_at"}

func sampleSeries() domain.Series {
	desc := "A tower story."
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.Series{
		ID:          "01JSERIES000000000000000001",
		Slug:        "solo-climber",
		Title:       "Solo Climber",
		Description: &desc,
		Status:      domain.StatusPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func seriesRow(s domain.Series) *pgxmock.Rows {
	return pgxmock.NewRows(seriesCols).AddRow(
		s.ID, s.Slug, s.Title, s.Description, string(s.Status), s.CoverURL, s.CreatedAt, s.UpdatedAt,
	)
}

func TestUpsertSeries(t *testing.T) {
	s, mock := setupStore(t)
	in := sampleSeries()

	mock.ExpectQuery("INSERT INTO series").
		WithArgs(in.ID, in.Slug, in.Title, in.Description, "published", in.CoverURL, in.CreatedAt, in.UpdatedAt).
		WillReturnRows(seriesRow(in))

	got, err := s.UpsertSeries(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, domain.StatusPublished, got.Status)
	require.NotNil(t, got.Description)
	assert.Equal(t, "A tower story.", *got.Description)
	assert.Nil(t, got.CoverURL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSeriesError(t *testing.T) {
	s, mock := setupStore(t)
	in := sampleSeries()

	mock.ExpectQuery("INSERT INTO series").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	_, err := s.UpsertSeries(context.Background(), in)
	require.ErrorContains(t, err, "upsert series")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSeriesBySlug(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := setupStore(t)
		in := sampleSeries()

		mock.ExpectQuery("SELECT .+ FROM series WHERE slug").
			WithArgs("solo-climber").
			WillReturnRows(seriesRow(in))

		got, err := s.GetSeriesBySlug(context.Background(), "solo-climber")
		require.NoError(t, err)
		assert.Equal(t, in.Title, got.Title)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := setupStore(t)

		mock.ExpectQuery("SELECT .+ FROM series WHERE slug").
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.GetSeriesBySlug(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertChapterAndPage(t *testing.T) {
	s, mock := setupStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	title := "Chapter 10.5"

	ch := domain.Chapter{ID: "ch-1", SeriesID: "series-1", Number: 10.5, Title: &title, CreatedAt: now, UpdatedAt: now}
	mock.ExpectQuery("INSERT INTO chapters").
		WithArgs(ch.ID, ch.SeriesID, ch.Number, ch.Title, ch.CreatedAt, ch.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "series_id", "number", "title", "created_at", "updated_at"}).
			AddRow("ch-existing", "series-1", 10.5, &title, now.Add(-time.Hour), now))

	gotCh, err := s.UpsertChapter(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "ch-existing", gotCh.ID)
	assert.InDelta(t, 10.5, gotCh.Number, 0)

	pg := domain.Page{ID: "pg-1", ChapterID: "ch-existing", Index: 1, ImageKey: "https://cdn.test/1.jpg", CreatedAt: now, UpdatedAt: now}
	mock.ExpectQuery("INSERT INTO pages").
		WithArgs(pg.ID, pg.ChapterID, pg.Index, pg.ImageKey, pg.CreatedAt, pg.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "chapter_id", "idx", "image_key", "created_at", "updated_at"}).
			AddRow("pg-1", "ch-existing", 1, "https://cdn.test/1.jpg", now, now))

	gotPg, err := s.UpsertPage(context.Background(), pg)
	require.NoError(t, err)
	assert.Equal(t, 1, gotPg.Index)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertExternalRef(t *testing.T) {
	s, mock := setupStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	url := "https://manga.test/manga/solo-climber/"

	ref := domain.ExternalRef{
		ID: "ref-1", Source: domain.SourceOneManga, Entity: domain.EntitySeries,
		SourceKey: "solo-climber", EntityID: "series-1", URL: &url, CreatedAt: now, UpdatedAt: now,
	}
	mock.ExpectQuery("INSERT INTO external_refs").
		WithArgs(ref.ID, ref.Source, ref.Entity, ref.SourceKey, ref.EntityID, ref.URL, ref.CreatedAt, ref.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "source", "entity", "source_key", "entity_id", "url", "created_at", "updated_at"}).
			AddRow("ref-1", "one-manga", "series", "solo-climber", "series-1", &url, now, now))

	got, err := s.UpsertExternalRef(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "series-1", got.EntityID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"series", "chapters", "pages"}).AddRow(int64(2), int64(7), int64(140)))

	got, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Series: 2, Chapters: 7, Pages: 140}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_catalog.up.sql":   {Data: []byte("CREATE TABLE series (id TEXT)")},
		"000001_catalog.down.sql": {Data: []byte("DROP TABLE series")},
		"000002_refs.up.sql":      {Data: []byte("CREATE TABLE external_refs (id TEXT)")},
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS catalog_schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("000001_catalog.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery("SELECT EXISTS").WithArgs("000002_refs.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE external_refs").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("INSERT INTO catalog_schema_migrations").WithArgs("000002_refs.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, runMigrations(context.Background(), mock, fsys, discardLogger()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsRollsBackOnFailure(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_catalog.up.sql": {Data: []byte("CREATE TABLE series (")},
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("000001_catalog.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE series").WillReturnError(errors.New("syntax error at end of input"))
	mock.ExpectRollback()

	err = runMigrations(context.Background(), mock, fsys, discardLogger())
	require.ErrorContains(t, err, "execute migration 000001_catalog.up.sql")
	require.NoError(t, mock.ExpectationsWereMet())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
