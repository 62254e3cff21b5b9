package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/slogx"
)

func TestHousekeepingTick(t *testing.T) {
	ctx := context.Background()
	q, clock := newTestQueue(t)

	tasks := make([]Task, 0, KeepCompleted+3)
	for i := 0; i < KeepCompleted+3; i++ {
		tasks = append(tasks, Task{Kind: KindChapter, URL: fmt.Sprintf("https://manga.test/manga/solo-climber-%d/", i)})
	}
	_, err := q.EnqueueBulk(ctx, tasks)
	require.NoError(t, err)
	for range tasks {
		j := mustDequeue(t, q)
		require.NoError(t, q.Complete(ctx, j.ID))
	}

	_, err = q.Enqueue(ctx, Task{Kind: KindSeries, URL: seriesURL})
	require.NoError(t, err)
	j := mustDequeue(t, q)
	_, err = q.Fail(ctx, j.ID, errors.New("timeout"))
	require.NoError(t, err)
	clock.Advance(DefaultBackoff)

	NewHousekeeping(q, slogx.Discard(), 0).Tick(ctx)

	c, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 1, Completed: KeepCompleted}, c)

	assert.Equal(t, float64(KeepCompleted), testutil.ToFloat64(queueJobs.WithLabelValues(string(StateCompleted))))
	assert.Equal(t, float64(1), testutil.ToFloat64(queueJobs.WithLabelValues(string(StateWaiting))))
}

func TestHousekeepingRequeuesExpiredLeases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q, clock := newTestQueue(t)

	_, err := q.Enqueue(ctx, Task{Kind: KindSeries, URL: seriesURL})
	require.NoError(t, err)
	mustDequeue(t, q)

	h := NewHousekeeping(q, slogx.Discard(), time.Hour)
	h.Tick(ctx)
	c, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Active: 1}, c, "no lease means no requeue")

	h.Lease = 5*time.Minute + StallGrace
	clock.Advance(5 * time.Minute)
	h.Tick(ctx)
	c, err = q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Active: 1}, c)

	clock.Advance(StallGrace)
	h.Tick(ctx)
	c, err = q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Waiting: 1}, c)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	q, _ := newTestQueue(t)

	h := NewHousekeeping(q, slogx.Discard(), 10*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, h.Interval)

	h.Start()
	time.Sleep(30 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
