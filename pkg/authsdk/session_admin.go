package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// The methods below call admin endpoints and need a session whose user
// holds the admin role.

// UpsertSeries creates or updates the series with the given slug.
func (s *Session) UpsertSeries(ctx context.Context, slug string, req UpsertSeriesRequest) (*SeriesResponse, error) {
	var out SeriesResponse
	if err := s.Do(ctx, http.MethodPut, "/v1/admin/series/"+url.PathEscape(slug), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnqueueSeries schedules a crawl of one series page.
func (s *Session) EnqueueSeries(ctx context.Context, seriesURL string) (*EnqueueResponse, error) {
	var out EnqueueResponse
	err := s.Do(ctx, http.MethodPost, "/v1/crawler/series", EnqueueSeriesRequest{URL: seriesURL}, &out, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SeedListing schedules listing pages 1 through pages.
func (s *Session) SeedListing(ctx context.Context, pages int) (*EnqueueResponse, error) {
	var out EnqueueResponse
	err := s.Do(ctx, http.MethodPost, "/v1/crawler/seed", SeedRequest{Pages: pages}, &out, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CrawlerMetrics(ctx context.Context) (*CrawlerMetricsResponse, error) {
	var out CrawlerMetricsResponse
	if err := s.Do(ctx, http.MethodGet, "/v1/crawler/metrics", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CrawlerHosts(ctx context.Context) ([]CrawlerHost, error) {
	var out HostsResponse
	if err := s.Do(ctx, http.MethodGet, "/v1/crawler/hosts", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Hosts, nil
}

// QueueStats returns the number of jobs in each state.
func (s *Session) QueueStats(ctx context.Context) (*QueueCounts, error) {
	var out QueueCounts
	if err := s.Do(ctx, http.MethodGet, "/v1/crawler/ops/stats", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs lists jobs in state between the inclusive ranks start and end.
func (s *Session) ListJobs(ctx context.Context, state string, start, end int) ([]CrawlerJob, error) {
	q := url.Values{}
	q.Set("state", state)
	q.Set("start", strconv.Itoa(start))
	q.Set("end", strconv.Itoa(end))

	var out JobsResponse
	if err := s.Do(ctx, http.MethodGet, "/v1/crawler/ops/jobs?"+q.Encode(), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// ListFailedJobs returns the most recent dead jobs.
func (s *Session) ListFailedJobs(ctx context.Context) ([]CrawlerJob, error) {
	var out JobsResponse
	if err := s.Do(ctx, http.MethodGet, "/v1/crawler/ops/failed", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// RetryJob moves a dead job back to the queue.
func (s *Session) RetryJob(ctx context.Context, id string) error {
	var ok OKResponse
	return s.Do(ctx, http.MethodPost, "/v1/crawler/ops/retry/"+url.PathEscape(id), nil, &ok, http.StatusOK)
}

// RemoveJob deletes a job that is not being processed.
func (s *Session) RemoveJob(ctx context.Context, id string) error {
	var ok OKResponse
	return s.Do(ctx, http.MethodDelete, "/v1/crawler/ops/jobs/"+url.PathEscape(id), nil, &ok, http.StatusOK)
}
