package resource

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilController(t *testing.T) {
	ctx := context.Background()
	var c *Controller

	assert.Positive(t, c.MaxWorkers())
	require.NoError(t, c.AcquireWorker(ctx))
	c.ReleaseWorker()

	release, err := c.SingleWorker(ctx)
	require.NoError(t, err)
	release()

	require.NoError(t, c.WaitIO(ctx, 1<<30))
}

func TestWorkerSlots(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MaxWorkers: 2})

	assert.Equal(t, 2, c.MaxWorkers())

	require.NoError(t, c.AcquireWorker(ctx))
	require.NoError(t, c.AcquireWorker(ctx))

	// Both slots held; a third acquire has to wait for a release.
	acquired := make(chan struct{})
	go func() {
		if err := c.AcquireWorker(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded with all slots held")
	case <-time.After(20 * time.Millisecond):
	}

	c.ReleaseWorker()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}

	c.ReleaseWorker()
	c.ReleaseWorker()
}

func TestSingleWorker(t *testing.T) {
	ctx := context.Background()
	c := NewController(Config{MaxWorkers: 4})

	release, err := c.SingleWorker(ctx)
	require.NoError(t, err)

	// Exactly one slot remains inside the scope.
	require.NoError(t, c.AcquireWorker(ctx))

	var concurrent atomic.Bool
	go func() {
		if err := c.AcquireWorker(ctx); err == nil {
			concurrent.Store(true)
			c.ReleaseWorker()
		}
	}()
	time.Sleep(20 * time.Millisecond)
	assert.False(t, concurrent.Load())

	c.ReleaseWorker()
	release()

	// Capacity is restored after release.
	for i := 0; i < 4; i++ {
		require.NoError(t, c.AcquireWorker(ctx))
	}
	for i := 0; i < 4; i++ {
		c.ReleaseWorker()
	}
}

func TestSingleWorkerCanceled(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	ctx := context.Background()

	require.NoError(t, c.AcquireWorker(ctx))

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	_, err := c.SingleWorker(canceled)
	require.Error(t, err)

	c.ReleaseWorker()
}

func TestWaitIOPacing(t *testing.T) {
	ctx := context.Background()

	t.Run("NoLimit", func(t *testing.T) {
		c := NewController(Config{MaxWorkers: 1})
		require.NoError(t, c.WaitIO(ctx, 1<<30))
	})

	t.Run("ChunksLargeRequests", func(t *testing.T) {
		// Burst equals the rate, so a request larger than one second of
		// budget must be split rather than rejected.
		c := NewController(Config{MaxWorkers: 1, IOLimitBytesPerSec: 1 << 20})
		require.NoError(t, c.WaitIO(ctx, 1<<20+1024))
	})

	t.Run("CanceledContext", func(t *testing.T) {
		c := NewController(Config{MaxWorkers: 1, IOLimitBytesPerSec: 16})
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		require.Error(t, c.WaitIO(canceled, 1<<20))
	})
}

func TestThrottledWriter(t *testing.T) {
	ctx := context.Background()

	var buf bytes.Buffer
	tw := NewThrottledWriter(ctx, nil, &buf)

	n, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", buf.String())

	t.Run("PropagatesCancellation", func(t *testing.T) {
		c := NewController(Config{MaxWorkers: 1, IOLimitBytesPerSec: 16})
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		tw := NewThrottledWriter(canceled, c, &buf)
		_, err := tw.Write(make([]byte, 1<<20))
		require.Error(t, err)
	})
}
