package crawler

import (
	"context"
	"log/slog"
	"time"
)

// promoteBatch caps how many delayed jobs move per tick.
const promoteBatch = 500

// StallGrace is added to the job timeout to form the lease of an active job.
const StallGrace = 30 * time.Second

// Housekeeping periodically promotes delayed jobs whose backoff has
// elapsed, takes back jobs whose lease ran out, trims the finished sets and
// refreshes the queue gauges.
type Housekeeping struct {
	Queue    *Queue
	Logger   *slog.Logger
	Interval time.Duration
	// Lease is how long a job may stay active. Zero disables stall checks.
	Lease time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeeping defaults interval to one second.
func NewHousekeeping(q *Queue, logger *slog.Logger, interval time.Duration) *Housekeeping {
	if interval <= 0 {
		interval = time.Second
	}

	return &Housekeeping{
		Queue:    q,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the loop in the background until Stop is called.
func (h *Housekeeping) Start() {
	go h.run()
	h.Logger.Info("queue housekeeping started", "interval", h.Interval)
}

// Stop blocks until an in-progress tick has finished.
func (h *Housekeeping) Stop() {
	close(h.stopCh)
	<-h.doneCh
	h.Logger.Info("queue housekeeping stopped")
}

func (h *Housekeeping) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.Tick(context.Background())

	for {
		select {
		case <-ticker.C:
			h.Tick(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// Tick runs one pass. Each step is independent; a failure is logged and the
// rest still run.
func (h *Housekeeping) Tick(ctx context.Context) {
	if n, err := h.Queue.Promote(ctx, promoteBatch); err != nil {
		h.Logger.Error("failed to promote delayed jobs", "error", err)
	} else if n > 0 {
		h.Logger.Debug("promoted delayed jobs", "count", n)
	}

	if h.Lease > 0 {
		if n, err := h.Queue.RequeueStalled(ctx, h.Lease); err != nil {
			h.Logger.Error("failed to requeue stalled jobs", "error", err)
		} else if n > 0 {
			h.Logger.Warn("requeued stalled jobs", "count", n, "lease", h.Lease)
		}
	}

	if n, err := h.Queue.Trim(ctx, StateCompleted, KeepCompleted); err != nil {
		h.Logger.Error("failed to trim completed jobs", "error", err)
	} else if n > 0 {
		h.Logger.Debug("trimmed completed jobs", "count", n)
	}

	if n, err := h.Queue.Trim(ctx, StateFailed, KeepFailed); err != nil {
		h.Logger.Error("failed to trim dead jobs", "error", err)
	} else if n > 0 {
		h.Logger.Debug("trimmed dead jobs", "count", n)
	}

	if c, err := h.Queue.Counts(ctx); err != nil {
		h.Logger.Error("failed to read queue counts", "error", err)
	} else {
		observeCounts(c)
	}
}
