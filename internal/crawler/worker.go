package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// NewLimiter allows max jobs per window with a burst of max.
func NewLimiter(max int, window time.Duration) *rate.Limiter {
	if max <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(max)), max)
}

// Pool runs Concurrency workers against one queue. All workers share the
// limiter, so the rate holds for the pool as a whole.
type Pool struct {
	Queue   *Queue
	Handler Handler
	Limiter *rate.Limiter
	Tally   *Tally
	Logger  *slog.Logger

	Concurrency  int
	JobTimeout   time.Duration
	PollInterval time.Duration
}

// Run blocks until ctx is done and every worker has returned. Jobs this pool
// abandons stay active until Housekeeping finds their lease expired.
func (p *Pool) Run(ctx context.Context) error {
	if p.Concurrency <= 0 {
		p.Concurrency = 1
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = time.Minute
	}
	if p.PollInterval <= 0 {
		p.PollInterval = 500 * time.Millisecond
	}
	if p.Limiter == nil {
		p.Limiter = rate.NewLimiter(rate.Inf, 0)
	}

	p.Logger.Info("crawler workers started", "concurrency", p.Concurrency)

	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.loop(ctx, p.Logger.With("worker", worker))
		}(i)
	}
	wg.Wait()

	p.Logger.Info("crawler workers stopped")
	return nil
}

func (p *Pool) loop(ctx context.Context, log *slog.Logger) {
	for ctx.Err() == nil {
		// Wait for a slot before claiming, so the lease only covers the run.
		if err := p.Limiter.Wait(ctx); err != nil {
			return
		}

		job, ok, err := p.Queue.Dequeue(ctx)
		if err != nil && ctx.Err() == nil {
			log.Error("dequeue failed", "err", err)
		}
		if err != nil || !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.PollInterval):
			}
			continue
		}
		p.process(ctx, log, job)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, job Job) {
	log = log.With("job_id", job.ID, "kind", job.Kind, "attempt", job.Attempts)
	start := time.Now()

	err := p.run(ctx, log, job)

	// The outcome is recorded even when ctx was cancelled mid-job.
	done := context.WithoutCancel(ctx)
	if err != nil {
		p.Tally.Failed(job.Kind, err)
		state, ferr := p.Queue.Fail(done, job.ID, err)
		if ferr != nil {
			log.Error("record job failure", "err", ferr)
			return
		}
		log.Error("job failed", "err", err, "next_state", state, "duration", time.Since(start))
		return
	}

	p.Tally.Processed(job.Kind)
	if err := p.Queue.Complete(done, job.ID); err != nil {
		log.Error("record job completion", "err", err)
		return
	}
	log.Debug("job completed", "duration", time.Since(start))
}

func (p *Pool) run(ctx context.Context, log *slog.Logger, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	jctx, cancel := context.WithTimeout(slogx.WithContext(ctx, log), p.JobTimeout)
	defer cancel()
	return p.Handler.Handle(jctx, job)
}
