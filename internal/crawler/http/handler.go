// Package http serves the crawler's operator endpoints.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/crawler"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

const (
	defaultJobsEnd = 49
	maxJobsPage    = 500
)

var errJobActive = authsdk.NewAPIError(http.StatusConflict, "job_active", "the job is being processed")

// Handler serves /v1/crawler. Every route requires the admin role.
type Handler struct {
	Service *crawler.Service
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux, authn httpx.Middleware, limits httpx.RateLimitProfiles) {
	admin := httpx.RequireAnyRole("admin")
	write := func(f http.HandlerFunc) http.Handler {
		return httpx.Chain(f, authn, admin, httpx.RateLimitByUser(limits.Moderate))
	}
	read := func(f http.HandlerFunc) http.Handler {
		return httpx.Chain(f, authn, admin, httpx.RateLimitByUser(limits.Lenient))
	}

	mux.Handle("POST /v1/crawler/series", write(h.HandleEnqueueSeries))
	mux.Handle("POST /v1/crawler/seed", write(h.HandleSeed))
	mux.Handle("GET /v1/crawler/metrics", read(h.HandleMetrics))
	mux.Handle("GET /v1/crawler/hosts", read(h.HandleHosts))

	mux.Handle("GET /v1/crawler/ops/stats", read(h.HandleStats))
	mux.Handle("GET /v1/crawler/ops/jobs", read(h.HandleJobs))
	mux.Handle("GET /v1/crawler/ops/failed", read(h.HandleFailed))
	mux.Handle("POST /v1/crawler/ops/retry/{id}", write(h.HandleRetry))
	mux.Handle("DELETE /v1/crawler/ops/jobs/{id}", write(h.HandleRemove))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrBadRequest):
		authsdk.ValidationError(err.Error()).WriteError(w)
	case errors.Is(err, crawler.ErrJobNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, crawler.ErrJobActive):
		errJobActive.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("crawler request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// HandleEnqueueSeries godoc
//
//	@Summary		Crawl a series
//	@Description	Queues a deep crawl of one series page. The series job queues a job per chapter. Enqueued is 0 when the URL is already queued.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EnqueueSeriesRequest	true	"Series page URL"
//	@Success		202		{object}	authsdk.EnqueueResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/series [post].
func (h *Handler) HandleEnqueueSeries(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EnqueueSeriesRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	queued, err := h.Service.EnqueueSeries(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n := 0
	if queued {
		n = 1
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.EnqueueResponse{OK: true, Enqueued: n, Type: string(crawler.KindSeries)})
}

// HandleSeed godoc
//
//	@Summary		Seed listing pages
//	@Description	Queues listing pages 1 through pages. Each listing job queues the series it links to.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SeedRequest	true	"Number of listing pages"
//	@Success		202		{object}	authsdk.EnqueueResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/seed [post].
func (h *Handler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SeedRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.Service.Seed(r.Context(), req.Pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, authsdk.EnqueueResponse{OK: true, Enqueued: n, Type: string(crawler.KindListing)})
}

// HandleMetrics godoc
//
//	@Summary		Crawler metrics
//	@Description	Queue counts, counters since start and catalog row counts.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.CrawlerMetricsResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/metrics [get].
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Metrics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.CrawlerMetricsResponse{
		Queue: queueCounts(snap.Queue),
		Counters: authsdk.CrawlerCounters{
			Enqueued:  snap.Counters.Enqueued,
			Processed: snap.Counters.Processed,
			Failed:    snap.Counters.Failed,
			LastError: snap.Counters.LastError,
		},
		DB: authsdk.CatalogCounts{
			Series:   snap.DB.Series,
			Chapters: snap.DB.Chapters,
			Pages:    snap.DB.Pages,
		},
	})
}

// HandleHosts godoc
//
//	@Summary		Configured hosts
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.HostsResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/hosts [get].
func (h *Handler) HandleHosts(w http.ResponseWriter, _ *http.Request) {
	hosts := h.Service.Hosts()
	out := authsdk.HostsResponse{Hosts: make([]authsdk.CrawlerHost, 0, len(hosts))}
	for _, host := range hosts {
		out.Hosts = append(out.Hosts, authsdk.CrawlerHost{Host: host.Host, BaseURL: host.BaseURL, Source: host.Source})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleStats godoc
//
//	@Summary		Queue counts
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.QueueCounts
//	@Failure		403	{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/ops/stats [get].
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Queue.Counts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, queueCounts(c))
}

// HandleJobs godoc
//
//	@Summary		List jobs by state
//	@Description	Lists jobs between the inclusive ranks start and end. Finished jobs are listed newest first.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Param			state	query		string	true	"Job state"	Enums(waiting, active, delayed, failed, completed)
//	@Param			start	query		int		false	"First rank"	default(0)
//	@Param			end		query		int		false	"Last rank"		default(49)
//	@Success		200		{object}	authsdk.JobsResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation_error"
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/ops/jobs [get].
func (h *Handler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state, ok := crawler.ParseState(q.Get("state"))
	if !ok {
		authsdk.ValidationError("state must be one of waiting active delayed failed completed").WriteError(w)
		return
	}
	start, err := rank(q.Get("start"), 0)
	if err != nil {
		authsdk.ValidationError("start must be a non-negative integer").WriteError(w)
		return
	}
	end, err := rank(q.Get("end"), defaultJobsEnd)
	if err != nil || end < start {
		authsdk.ValidationError("end must be an integer not below start").WriteError(w)
		return
	}
	if end-start >= maxJobsPage {
		end = start + maxJobsPage - 1
	}

	jobs, err := h.Service.Queue.Jobs(r.Context(), state, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, jobsResponse(jobs))
}

// HandleFailed godoc
//
//	@Summary		List dead jobs
//	@Description	Lists the 50 most recent jobs that used up their attempts.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.JobsResponse
//	@Failure		403	{object}	authsdk.ErrorResponse	"forbidden"
//	@Router			/v1/crawler/ops/failed [get].
func (h *Handler) HandleFailed(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Service.Queue.ListFailed(r.Context(), 0, defaultJobsEnd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, jobsResponse(jobs))
}

// HandleRetry godoc
//
//	@Summary		Retry a dead job
//	@Description	Moves a dead job back to the queue with a fresh attempt budget.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Job ID (the page URL, path escaped)"
//	@Success		200	{object}	authsdk.OKResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"not_found"
//	@Router			/v1/crawler/ops/retry/{id} [post].
func (h *Handler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.Queue.Retry(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("crawl job retried", "job_id", id)
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

// HandleRemove godoc
//
//	@Summary		Remove a job
//	@Description	Deletes a job in any state except active.
//	@Tags			Crawler
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string	true	"Job ID (the page URL, path escaped)"
//	@Success		200	{object}	authsdk.OKResponse
//	@Failure		404	{object}	authsdk.ErrorResponse	"not_found"
//	@Failure		409	{object}	authsdk.ErrorResponse	"job_active"
//	@Router			/v1/crawler/ops/jobs/{id} [delete].
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Service.Queue.Remove(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(r.Context()).Info("crawl job removed", "job_id", id)
	httpx.WriteJSON(w, http.StatusOK, authsdk.OKResponse{OK: true})
}

func rank(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.New("bad rank")
	}
	return n, nil
}

func queueCounts(c crawler.Counts) authsdk.QueueCounts {
	return authsdk.QueueCounts{
		Waiting:   c.Waiting,
		Active:    c.Active,
		Delayed:   c.Delayed,
		Failed:    c.Failed,
		Completed: c.Completed,
	}
}

func jobsResponse(jobs []crawler.Job) authsdk.JobsResponse {
	out := authsdk.JobsResponse{Jobs: make([]authsdk.CrawlerJob, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, authsdk.CrawlerJob{
			ID:           j.ID,
			Type:         string(j.Kind),
			URL:          j.URL,
			State:        string(j.State),
			AttemptsMade: j.Attempts,
			MaxAttempts:  j.MaxAttempts,
			FailedReason: j.LastError,
			EnqueuedAt:   j.EnqueuedAt,
			FinishedOn:   j.FinishedAt,
		})
	}
	return out
}
