package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 2 * time.Second

	// Finished jobs kept for inspection.
	KeepCompleted = 1000
	KeepFailed    = 5000
)

// Queue is a job queue on Redis. A job id is its URL, so enqueueing a URL
// that is already waiting, delayed, active or dead is a no-op.
type Queue struct {
	rdb  *redis.Client
	name string

	MaxAttempts int
	Backoff     time.Duration
	Now         func() time.Time
}

func NewQueue(rdb *redis.Client, name string) *Queue {
	return &Queue{
		rdb:         rdb,
		name:        name,
		MaxAttempts: DefaultAttempts,
		Backoff:     DefaultBackoff,
	}
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

func (q *Queue) nowMs() int64 { return q.now().UnixMilli() }

func (q *Queue) key(part string) string { return q.name + ":" + part }
func (q *Queue) jobPrefix() string      { return q.name + ":job:" }

func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Enqueue adds one job and reports whether it was queued.
func (q *Queue) Enqueue(ctx context.Context, s Task) (bool, error) {
	n, err := q.EnqueueBulk(ctx, []Task{s})
	return n == 1, err
}

// EnqueueBulk adds jobs atomically and returns how many were new.
func (q *Queue) EnqueueBulk(ctx context.Context, tasks []Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	args := make([]any, 0, 3+3*len(tasks))
	args = append(args, q.jobPrefix(), q.MaxAttempts, q.nowMs())
	for _, s := range tasks {
		if !s.Kind.Valid() || s.URL == "" {
			return 0, fmt.Errorf("crawler: invalid job %q %q", s.Kind, s.URL)
		}
		args = append(args, s.URL, string(s.Kind), s.URL)
	}

	n, err := enqueueScript.Run(ctx, q.rdb, []string{q.key("waiting"), q.key("completed")}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return n, nil
}

// Dequeue moves the oldest waiting job to active. ok is false when nothing
// is waiting.
func (q *Queue) Dequeue(ctx context.Context) (job Job, ok bool, err error) {
	id, err := dequeueScript.Run(ctx, q.rdb,
		[]string{q.key("waiting"), q.key("active")},
		q.jobPrefix(), q.nowMs(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("dequeue: %w", err)
	}

	job, err = q.Get(ctx, id)
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}

func (q *Queue) Get(ctx context.Context, id string) (Job, error) {
	h, err := q.rdb.HGetAll(ctx, q.jobPrefix()+id).Result()
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	if len(h) == 0 {
		return Job{}, ErrJobNotFound
	}
	return jobFromHash(h), nil
}

// Complete moves an active job to the completed set.
func (q *Queue) Complete(ctx context.Context, id string) error {
	n, err := completeScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key("completed")},
		q.jobPrefix(), id, q.nowMs(),
	).Int()
	if err != nil {
		return fmt.Errorf("complete: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Fail records cause on an active job and either schedules the next
// attempt with exponential backoff or moves the job to the dead set. It
// returns the state the job ended up in.
func (q *Queue) Fail(ctx context.Context, id string, cause error) (State, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	st, err := failScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key("delayed"), q.key("failed")},
		q.jobPrefix(), id, q.nowMs(), msg, q.Backoff.Milliseconds(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fail: %w", err)
	}
	return State(st), nil
}

// Promote moves up to limit delayed jobs whose backoff has elapsed back to
// waiting.
func (q *Queue) Promote(ctx context.Context, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{q.key("delayed"), q.key("waiting")},
		q.jobPrefix(), q.nowMs(), limit,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote: %w", err)
	}
	return n, nil
}

// Retry moves a dead job back to waiting with a fresh attempt budget.
func (q *Queue) Retry(ctx context.Context, id string) error {
	n, err := retryScript.Run(ctx, q.rdb,
		[]string{q.key("failed"), q.key("waiting")},
		q.jobPrefix(), id,
	).Int()
	if err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Remove deletes a job that is not currently being processed.
func (q *Queue) Remove(ctx context.Context, id string) error {
	n, err := removeScript.Run(ctx, q.rdb,
		[]string{q.key("waiting"), q.key("delayed"), q.key("failed"), q.key("completed")},
		q.jobPrefix(), id,
	).Int()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	switch n {
	case 0:
		return ErrJobNotFound
	case -1:
		return ErrJobActive
	}
	return nil
}

// RequeueStalled takes back active jobs that started more than lease ago.
// Their worker is presumed gone. A job with attempts left is put at the
// head of waiting, the rest go to the dead set. It returns how many jobs
// were taken back.
func (q *Queue) RequeueStalled(ctx context.Context, lease time.Duration) (int, error) {
	now := q.now()
	n, err := stalledScript.Run(ctx, q.rdb,
		[]string{q.key("active"), q.key("waiting"), q.key("failed")},
		q.jobPrefix(), now.Add(-lease).UnixMilli(), now.UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue stalled: %w", err)
	}
	return n, nil
}

// Trim drops the oldest entries of a finished set beyond keep.
func (q *Queue) Trim(ctx context.Context, state State, keep int) (int, error) {
	if state != StateCompleted && state != StateFailed {
		return 0, fmt.Errorf("crawler: cannot trim %s jobs", state)
	}
	n, err := trimScript.Run(ctx, q.rdb, []string{q.key(string(state))}, q.jobPrefix(), keep).Int()
	if err != nil {
		return 0, fmt.Errorf("trim %s: %w", state, err)
	}
	return n, nil
}

func (q *Queue) Counts(ctx context.Context) (Counts, error) {
	var (
		waiting, active       *redis.IntCmd
		delayed, failed, done *redis.IntCmd
	)
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		waiting = p.LLen(ctx, q.key("waiting"))
		active = p.LLen(ctx, q.key("active"))
		delayed = p.ZCard(ctx, q.key("delayed"))
		failed = p.ZCard(ctx, q.key("failed"))
		done = p.ZCard(ctx, q.key("completed"))
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("queue counts: %w", err)
	}
	return Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Delayed:   delayed.Val(),
		Failed:    failed.Val(),
		Completed: done.Val(),
	}, nil
}

// Jobs lists jobs in state between the inclusive ranks start and end.
// Finished sets are listed newest first, delayed jobs soonest first.
func (q *Queue) Jobs(ctx context.Context, state State, start, end int64) ([]Job, error) {
	var (
		ids []string
		err error
	)
	k := q.key(string(state))
	switch state {
	case StateWaiting, StateActive:
		ids, err = q.rdb.LRange(ctx, k, start, end).Result()
	case StateDelayed:
		ids, err = q.rdb.ZRange(ctx, k, start, end).Result()
	case StateFailed, StateCompleted:
		ids, err = q.rdb.ZRevRange(ctx, k, start, end).Result()
	default:
		return nil, fmt.Errorf("crawler: unknown state %q", state)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", state, err)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, q.jobPrefix()+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s jobs: %w", state, err)
	}

	out := make([]Job, 0, len(ids))
	for _, c := range cmds {
		if h := c.Val(); len(h) > 0 {
			out = append(out, jobFromHash(h))
		}
	}
	return out, nil
}

// ListFailed lists the dead set, newest first.
func (q *Queue) ListFailed(ctx context.Context, start, end int64) ([]Job, error) {
	return q.Jobs(ctx, StateFailed, start, end)
}
