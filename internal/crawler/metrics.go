package crawler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	jobsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_jobs_enqueued_total",
			Help: "Crawl jobs added to the queue",
		},
		[]string{"type"},
	)

	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_jobs_processed_total",
			Help: "Crawl jobs that finished without error",
		},
		[]string{"type"},
	)

	jobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_jobs_failed_total",
			Help: "Crawl job attempts that returned an error",
		},
		[]string{"type"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Page fetch latency including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 60},
		},
		[]string{"host"},
	)

	queueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crawler_queue_jobs",
			Help: "Jobs in the crawl queue by state",
		},
		[]string{"state"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func observeCounts(c Counts) {
	queueJobs.WithLabelValues(string(StateWaiting)).Set(float64(c.Waiting))
	queueJobs.WithLabelValues(string(StateActive)).Set(float64(c.Active))
	queueJobs.WithLabelValues(string(StateDelayed)).Set(float64(c.Delayed))
	queueJobs.WithLabelValues(string(StateFailed)).Set(float64(c.Failed))
	queueJobs.WithLabelValues(string(StateCompleted)).Set(float64(c.Completed))
}

// Counters is the in-process tally served by the crawler metrics endpoint.
type Counters struct {
	Enqueued  int64  `json:"enqueued"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	LastError string `json:"lastError"`
}

// Tally tracks Counters alongside the Prometheus series. A nil Tally only
// feeds Prometheus.
type Tally struct {
	mu sync.Mutex
	c  Counters
}

func (t *Tally) Enqueued(kind Kind, n int) {
	if n <= 0 {
		return
	}
	jobsEnqueued.WithLabelValues(string(kind)).Add(float64(n))
	if t == nil {
		return
	}
	t.mu.Lock()
	t.c.Enqueued += int64(n)
	t.mu.Unlock()
}

func (t *Tally) Processed(kind Kind) {
	jobsProcessed.WithLabelValues(string(kind)).Inc()
	if t == nil {
		return
	}
	t.mu.Lock()
	t.c.Processed++
	t.mu.Unlock()
}

func (t *Tally) Failed(kind Kind, err error) {
	jobsFailed.WithLabelValues(string(kind)).Inc()
	if t == nil {
		return
	}
	t.mu.Lock()
	t.c.Failed++
	t.c.LastError = err.Error()
	t.mu.Unlock()
}

func (t *Tally) Snapshot() Counters {
	if t == nil {
		return Counters{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}
