package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maropu/pg-stats-exporter/metric"
)

func TestPool_ProcessesSubmittedWork(t *testing.T) {
	var processed int64
	var wg sync.WaitGroup

	pool := NewPool(2, 8, func(_ context.Context, n int) error {
		atomic.AddInt64(&processed, int64(n))
		wg.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	for i := 1; i <= 5; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	assert.Equal(t, int64(15), atomic.LoadInt64(&processed))

	stats := pool.Stats()
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(5), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)

	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })

	err := pool.Submit(1)
	assert.ErrorIs(t, err, ErrPoolNotStarted)
}

func TestPool_DoubleStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop(time.Second)

	assert.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		started <- struct{}{}
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	// First item occupies the single worker, second fills the queue.
	require.NoError(t, pool.Submit(1))
	<-started
	require.NoError(t, pool.Submit(2))

	err := pool.Submit(3)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, int64(1), pool.Stats().Dropped)

	close(release)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_FailedWorkCounted(t *testing.T) {
	var wg sync.WaitGroup

	pool := NewPool(1, 4, func(_ context.Context, fail bool) error {
		defer wg.Done()
		if fail {
			return errors.New("boom")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	wg.Add(2)
	require.NoError(t, pool.Submit(true))
	require.NoError(t, pool.Submit(false))
	wg.Wait()

	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPool_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		started <- struct{}{}
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))

	require.NoError(t, pool.Submit(1))
	<-started

	err := pool.Stop(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)

	close(release)
}

func TestPool_RunsAcceptedWorkDuringShutdown(t *testing.T) {
	processed := make(chan int, 1)

	pool := NewPool(1, 4, func(_ context.Context, n int) error {
		processed <- n
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	// A canceled start context must not kill the workers; an in-flight
	// request may still submit work while the process drains.
	cancel()

	require.NoError(t, pool.Submit(42))

	select {
	case n := <-processed:
		assert.Equal(t, 42, n)
	case <-time.After(time.Second):
		t.Fatal("accepted work was not processed after context cancellation")
	}

	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_SubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 4, func(_ context.Context, _ int) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Stop(time.Second))

	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func metricNames(t *testing.T, registry *metric.Registry) map[string]bool {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestPool_MetricsRegisteredUntilStop(t *testing.T) {
	registry := metric.NewRegistry()

	pool := NewPool(1, 4,
		func(_ context.Context, _ int) error { return nil },
		WithMetricsRegistry[int](registry, "pool"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pool.Start(ctx))
	require.NoError(t, pool.Submit(1))

	names := metricNames(t, registry)
	assert.True(t, names["pool_submitted_total"])
	assert.True(t, names["pool_processed_total"])
	assert.True(t, names["pool_queue_depth"])

	// Stop releases the instruments so a replacement pool can reuse the
	// prefix.
	require.NoError(t, pool.Stop(time.Second))

	names = metricNames(t, registry)
	assert.False(t, names["pool_submitted_total"])
	assert.False(t, names["pool_queue_depth"])

	replacement := NewPool(1, 4,
		func(_ context.Context, _ int) error { return nil },
		WithMetricsRegistry[int](registry, "pool"),
	)
	require.NoError(t, replacement.Start(ctx))
	t.Cleanup(func() { replacement.Stop(time.Second) })

	assert.True(t, metricNames(t, registry)["pool_queue_depth"])
}
