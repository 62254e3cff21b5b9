package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a real Redis so the queue scripts are checked against the
// server's Lua rather than the in-memory emulation.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestQueueLifecycleOnRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	q := NewQueue(startRedis(t), QueueName)
	q.MaxAttempts = 2
	q.Backoff = time.Millisecond

	n, err := q.EnqueueBulk(ctx, []Task{
		{Kind: KindSeries, URL: seriesURL},
		{Kind: KindSeries, URL: seriesURL},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job := mustDequeue(t, q)
	state, err := q.Fail(ctx, job.ID, errors.New("status 503"))
	require.NoError(t, err)
	assert.Equal(t, StateDelayed, state)

	require.Eventually(t, func() bool {
		n, err := q.Promote(ctx, 10)
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	job = mustDequeue(t, q)
	assert.Equal(t, 2, job.Attempts)
	state, err = q.Fail(ctx, job.ID, errors.New("status 503"))
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)

	require.NoError(t, q.Retry(ctx, job.ID))
	job = mustDequeue(t, q)
	require.NoError(t, q.Complete(ctx, job.ID))

	c, err := q.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Completed: 1}, c)
}
