package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/store"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/tracing"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/idx"
)

var (
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrNotFound     = errors.New("catalog: not found")
)

var tracer = tracing.Tracer("webtoon/catalog")

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugCollapse = regexp.MustCompile(`[\s-]+`)
)

// Slugify lowercases title and joins its words with single dashes.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Catalog is the single write path into the catalog. The crawler and the
// admin API both go through it, so every write is an idempotent upsert on
// the row's natural key.
type Catalog struct {
	Store store.Store
	Now   func() time.Time
}

func New(st store.Store) *Catalog {
	return &Catalog{Store: st}
}

func (c *Catalog) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

type SeriesInput struct {
	Slug        string
	Title       string
	Description *string
	Status      domain.SeriesStatus
	CoverURL    *string
}

// UpsertSeries creates or updates the series named by in.Slug. An empty slug
// is derived from the title and an empty status means draft.
func (c *Catalog) UpsertSeries(ctx context.Context, in SeriesInput) (domain.Series, error) {
	ctx, span := tracer.Start(ctx, "catalog.upsert_series")
	defer span.End()

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.Series{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Slug == "" {
		in.Slug = Slugify(in.Title)
	}
	if !slugPattern.MatchString(in.Slug) {
		return domain.Series{}, fmt.Errorf("%w: slug %q", ErrInvalidInput, in.Slug)
	}
	if in.Status == "" {
		in.Status = domain.StatusDraft
	}
	if !in.Status.Valid() {
		return domain.Series{}, fmt.Errorf("%w: status %q", ErrInvalidInput, in.Status)
	}

	now := c.now()
	return c.Store.UpsertSeries(ctx, domain.Series{
		ID:          idx.NewAt(now).String(),
		Slug:        in.Slug,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		CoverURL:    in.CoverURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (c *Catalog) FindSeriesBySlug(ctx context.Context, slug string) (domain.Series, error) {
	s, err := c.Store.GetSeriesBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Series{}, ErrNotFound
	}
	return s, err
}

// UpsertChapter creates or touches chapter number of seriesID. title only
// applies when the chapter is created.
func (c *Catalog) UpsertChapter(ctx context.Context, seriesID string, number float64, title *string) (domain.Chapter, error) {
	if seriesID == "" || number < 0 {
		return domain.Chapter{}, fmt.Errorf("%w: chapter %v of %q", ErrInvalidInput, number, seriesID)
	}

	now := c.now()
	return c.Store.UpsertChapter(ctx, domain.Chapter{
		ID:        idx.NewAt(now).String(),
		SeriesID:  seriesID,
		Number:    number,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// UpsertPage sets the image of page index (1-based) of chapterID.
func (c *Catalog) UpsertPage(ctx context.Context, chapterID string, index int, imageKey string) (domain.Page, error) {
	if chapterID == "" || index < 1 || imageKey == "" {
		return domain.Page{}, fmt.Errorf("%w: page %d of %q", ErrInvalidInput, index, chapterID)
	}

	now := c.now()
	return c.Store.UpsertPage(ctx, domain.Page{
		ID:        idx.NewAt(now).String(),
		ChapterID: chapterID,
		Index:     index,
		ImageKey:  imageKey,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (c *Catalog) UpsertExternalRef(
	ctx context.Context,
	source, entity, sourceKey, entityID string,
	url *string,
) (domain.ExternalRef, error) {
	if source == "" || entity == "" || sourceKey == "" || entityID == "" {
		return domain.ExternalRef{}, fmt.Errorf("%w: external ref %s/%s/%s", ErrInvalidInput, source, entity, sourceKey)
	}

	now := c.now()
	return c.Store.UpsertExternalRef(ctx, domain.ExternalRef{
		ID:        idx.NewAt(now).String(),
		Source:    source,
		Entity:    entity,
		SourceKey: sourceKey,
		EntityID:  entityID,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (c *Catalog) Counts(ctx context.Context) (domain.Counts, error) {
	return c.Store.Counts(ctx)
}
