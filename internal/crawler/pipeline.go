package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	catalogdomain "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
	catalogservice "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/service"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/events"
	"github.com/silaprtnw01/webtoon-be-normal-design/internal/platform/tracing"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

var tracer = tracing.Tracer("webtoon/crawler")

// SeriesPage is what a site adapter extracts from a series page.
type SeriesPage struct {
	Slug        string
	Title       string
	Description *string
	// ChapterURLs are unique per chapter number, ascending.
	ChapterURLs []string
}

// ChapterPage is what a site adapter extracts from a chapter page.
type ChapterPage struct {
	SeriesSlug string
	Number     float64
	Title      string
	Images     []string
}

// Parser understands the markup of one site.
type Parser interface {
	ListingURL(page int) string
	ParseListing(html string) []string
	ParseSeries(pageURL, html string) (SeriesPage, error)
	ParseChapter(pageURL, html string) (ChapterPage, error)
}

type Fetch interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Catalog is the catalog write path the pipeline needs.
type Catalog interface {
	UpsertSeries(ctx context.Context, in catalogservice.SeriesInput) (catalogdomain.Series, error)
	FindSeriesBySlug(ctx context.Context, slug string) (catalogdomain.Series, error)
	UpsertChapter(ctx context.Context, seriesID string, number float64, title *string) (catalogdomain.Chapter, error)
	UpsertPage(ctx context.Context, chapterID string, index int, imageKey string) (catalogdomain.Page, error)
	UpsertExternalRef(ctx context.Context, source, entity, sourceKey, entityID string, url *string) (catalogdomain.ExternalRef, error)
}

type Enqueuer interface {
	EnqueueBulk(ctx context.Context, tasks []Task) (int, error)
}

// Event types written to the catalog topic.
const (
	EventSeriesIngested  = "catalog.series.ingested"
	EventChapterIngested = "catalog.chapter.ingested"
)

// Pipeline turns one job into catalog writes and follow-up jobs. Running a
// job twice leaves the catalog as running it once.
type Pipeline struct {
	Fetcher Fetch
	Parser  Parser
	Catalog Catalog
	Queue   Enqueuer
	Tally   *Tally

	// Events is optional. Publish failures are logged, never returned.
	Events events.Publisher
	Topic  string
}

func (p *Pipeline) Handle(ctx context.Context, job Job) error {
	ctx, span := tracer.Start(ctx, "crawler.job")
	defer span.End()
	span.SetAttributes(attribute.String("job.kind", string(job.Kind)), attribute.String("job.url", job.URL))

	html, err := p.Fetcher.Fetch(ctx, job.URL)
	if err != nil {
		span.RecordError(err)
		return err
	}

	switch job.Kind {
	case KindListing:
		err = p.listing(ctx, html)
	case KindSeries:
		err = p.series(ctx, job.URL, html)
	case KindChapter:
		err = p.chapter(ctx, job.URL, html)
	default:
		err = fmt.Errorf("crawler: unknown job kind %q", job.Kind)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *Pipeline) listing(ctx context.Context, html string) error {
	urls := p.Parser.ParseListing(html)
	tasks := make([]Task, 0, len(urls))
	for _, u := range urls {
		tasks = append(tasks, Task{Kind: KindSeries, URL: u})
	}

	n, err := p.Queue.EnqueueBulk(ctx, tasks)
	if err != nil {
		return err
	}
	p.Tally.Enqueued(KindSeries, n)
	slogx.FromContext(ctx).Info("listing crawled", "series", len(urls), "enqueued", n)
	return nil
}

func (p *Pipeline) series(ctx context.Context, pageURL, html string) error {
	info, err := p.Parser.ParseSeries(pageURL, html)
	if err != nil {
		return err
	}

	series, err := p.Catalog.UpsertSeries(ctx, catalogservice.SeriesInput{
		Slug:        info.Slug,
		Title:       info.Title,
		Description: info.Description,
		Status:      catalogdomain.StatusPublished,
	})
	if err != nil {
		return fmt.Errorf("upsert series %s: %w", info.Slug, err)
	}

	_, err = p.Catalog.UpsertExternalRef(ctx,
		catalogdomain.SourceOneManga, catalogdomain.EntitySeries, info.Slug, series.ID, &pageURL)
	if err != nil {
		return fmt.Errorf("bind series %s: %w", info.Slug, err)
	}

	tasks := make([]Task, 0, len(info.ChapterURLs))
	for _, u := range info.ChapterURLs {
		tasks = append(tasks, Task{Kind: KindChapter, URL: u})
	}
	n, err := p.Queue.EnqueueBulk(ctx, tasks)
	if err != nil {
		return err
	}
	p.Tally.Enqueued(KindChapter, n)

	slogx.FromContext(ctx).Info("series crawled",
		"slug", info.Slug, "chapters", len(info.ChapterURLs), "enqueued", n)
	p.publish(ctx, EventSeriesIngested, series.ID, "series", map[string]any{
		"slug":     series.Slug,
		"chapters": len(info.ChapterURLs),
	})
	return nil
}

func (p *Pipeline) chapter(ctx context.Context, pageURL, html string) error {
	parsed, err := p.Parser.ParseChapter(pageURL, html)
	if err != nil {
		return err
	}

	series, err := p.Catalog.FindSeriesBySlug(ctx, parsed.SeriesSlug)
	if errors.Is(err, catalogservice.ErrNotFound) {
		return seriesNotFound(parsed.SeriesSlug)
	}
	if err != nil {
		return err
	}

	var title *string
	if t := strings.TrimSpace(parsed.Title); t != "" {
		title = &t
	}
	ch, err := p.Catalog.UpsertChapter(ctx, series.ID, parsed.Number, title)
	if err != nil {
		return fmt.Errorf("upsert chapter %s#%v: %w", parsed.SeriesSlug, parsed.Number, err)
	}

	key := parsed.SeriesSlug + "-" + strconv.FormatFloat(parsed.Number, 'f', -1, 64)
	_, err = p.Catalog.UpsertExternalRef(ctx,
		catalogdomain.SourceOneManga, catalogdomain.EntityChapter, key, ch.ID, &pageURL)
	if err != nil {
		return fmt.Errorf("bind chapter %s: %w", key, err)
	}

	for i, img := range parsed.Images {
		if _, err := p.Catalog.UpsertPage(ctx, ch.ID, i+1, img); err != nil {
			return fmt.Errorf("upsert page %d of %s: %w", i+1, key, err)
		}
	}

	slogx.FromContext(ctx).Info("chapter crawled", "chapter", key, "pages", len(parsed.Images))
	p.publish(ctx, EventChapterIngested, ch.ID, "chapter", map[string]any{
		"series_id": series.ID,
		"number":    parsed.Number,
		"pages":     len(parsed.Images),
	})
	return nil
}

func (p *Pipeline) publish(ctx context.Context, eventType, id, aggregate string, data any) {
	if p.Events == nil || p.Topic == "" {
		return
	}
	e, err := events.NewEvent(eventType, id, aggregate, "crawler", data)
	if err == nil {
		err = p.Events.Publish(ctx, p.Topic, e)
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("publish catalog event failed", slog.String("type", eventType), slog.Any("err", err))
	}
}
