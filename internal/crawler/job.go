// Package crawler ingests series and chapters from a Madara site into the
// catalog through a Redis backed job queue.
package crawler

import (
	"strconv"
	"time"
)

// QueueName is the Redis key prefix of the crawl queue.
const QueueName = "crawler-one-manga"

type Kind string

const (
	KindListing Kind = "LISTING_PAGE"
	KindSeries  Kind = "SERIES_PAGE"
	KindChapter Kind = "CHAPTER_PAGE"
)

func (k Kind) Valid() bool {
	return k == KindListing || k == KindSeries || k == KindChapter
}

type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateFailed    State = "failed"
	StateCompleted State = "completed"
)

func ParseState(s string) (State, bool) {
	switch st := State(s); st {
	case StateWaiting, StateActive, StateDelayed, StateFailed, StateCompleted:
		return st, true
	}
	return "", false
}

// Task describes a job to enqueue. The URL doubles as the job id.
type Task struct {
	Kind Kind
	URL  string
}

type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"type"`
	URL         string     `json:"url"`
	State       State      `json:"state"`
	Attempts    int        `json:"attemptsMade"`
	MaxAttempts int        `json:"maxAttempts"`
	LastError   string     `json:"failedReason,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueuedAt"`
	StartedAt   *time.Time `json:"processedOn,omitempty"`
	FinishedAt  *time.Time `json:"finishedOn,omitempty"`
}

func jobFromHash(h map[string]string) Job {
	j := Job{
		ID:        h["id"],
		Kind:      Kind(h["kind"]),
		URL:       h["url"],
		State:     State(h["state"]),
		LastError: h["last_error"],
	}
	j.Attempts, _ = strconv.Atoi(h["attempts"])
	j.MaxAttempts, _ = strconv.Atoi(h["max_attempts"])
	if ms, err := strconv.ParseInt(h["enqueued_at"], 10, 64); err == nil {
		j.EnqueuedAt = time.UnixMilli(ms).UTC()
	}
	j.StartedAt = unixMilliPtr(h["started_at"])
	j.FinishedAt = unixMilliPtr(h["finished_at"])
	return j
}

func unixMilliPtr(v string) *time.Time {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// Counts is the number of jobs in each state.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
}
