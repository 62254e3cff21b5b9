package crawler

import (
	"context"
	"fmt"
	"net/url"

	catalogdomain "github.com/silaprtnw01/webtoon-be-normal-design/internal/catalog/domain"
)

// MaxSeedPages bounds a single seed request.
const MaxSeedPages = 2000

// Counter reports catalog row counts.
type Counter interface {
	Counts(ctx context.Context) (catalogdomain.Counts, error)
}

// Service is the crawler's operator surface.
type Service struct {
	Queue   *Queue
	Parser  Parser
	Catalog Counter
	Tally   *Tally
	BaseURL string
}

type Host struct {
	Host    string `json:"host"`
	BaseURL string `json:"baseUrl"`
	Source  string `json:"source"`
}

type Snapshot struct {
	Queue    Counts               `json:"queue"`
	Counters Counters             `json:"counters"`
	DB       catalogdomain.Counts `json:"db"`
}

// EnqueueSeries schedules a deep crawl of one series page.
func (s *Service) EnqueueSeries(ctx context.Context, seriesURL string) (bool, error) {
	queued, err := s.Queue.Enqueue(ctx, Task{Kind: KindSeries, URL: seriesURL})
	if err != nil {
		return false, err
	}
	if queued {
		s.Tally.Enqueued(KindSeries, 1)
	}
	return queued, nil
}

// Seed schedules listing pages 1 through pages.
func (s *Service) Seed(ctx context.Context, pages int) (int, error) {
	if pages < 1 || pages > MaxSeedPages {
		return 0, fmt.Errorf("crawler: pages must be within 1..%d", MaxSeedPages)
	}
	tasks := make([]Task, 0, pages)
	for i := 1; i <= pages; i++ {
		tasks = append(tasks, Task{Kind: KindListing, URL: s.Parser.ListingURL(i)})
	}

	n, err := s.Queue.EnqueueBulk(ctx, tasks)
	if err != nil {
		return 0, err
	}
	s.Tally.Enqueued(KindListing, n)
	return n, nil
}

func (s *Service) Metrics(ctx context.Context) (Snapshot, error) {
	q, err := s.Queue.Counts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	db, err := s.Catalog.Counts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Queue: q, Counters: s.Tally.Snapshot(), DB: db}, nil
}

func (s *Service) Hosts() []Host {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return []Host{}
	}
	return []Host{{Host: u.Host, BaseURL: s.BaseURL, Source: catalogdomain.SourceOneManga}}
}
