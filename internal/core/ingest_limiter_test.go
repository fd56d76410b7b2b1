package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestLimiter_AcquireRelease(t *testing.T) {
	limiter := NewIngestLimiter(2, time.Second)
	ctx := context.Background()

	assert.Equal(t, 0, limiter.ActiveCount())
	assert.Equal(t, 2, limiter.Available())

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	assert.Equal(t, 2, limiter.ActiveCount())
	assert.Equal(t, 0, limiter.Available())

	limiter.Release()
	assert.Equal(t, 1, limiter.ActiveCount())
	assert.Equal(t, 1, limiter.Available())

	limiter.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestIngestLimiter_BlocksWhenFull(t *testing.T) {
	limiter := NewIngestLimiter(1, 100*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTooManyIngests)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Equal(t, 1, limiter.ActiveCount(), "failed acquire must not count")
}

func TestIngestLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	const totalRequests = 10

	limiter := NewIngestLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if n := limiter.ActiveCount(); n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, maxConcurrent)
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestIngestLimiter_TryAcquire(t *testing.T) {
	limiter := NewIngestLimiter(1, time.Second)

	require.True(t, limiter.TryAcquire())
	assert.False(t, limiter.TryAcquire())

	limiter.Release()
	require.True(t, limiter.TryAcquire())
	limiter.Release()
}

func TestIngestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewIngestLimiter(1, 5*time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- limiter.Acquire(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancellation")
	}
}

func TestIngestLimiter_WaitForDrain(t *testing.T) {
	limiter := NewIngestLimiter(2, time.Second)
	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	drained := make(chan error, 1)
	go func() { drained <- limiter.WaitForDrain(context.Background()) }()

	select {
	case <-drained:
		t.Fatal("WaitForDrain returned with active ingests")
	case <-time.After(50 * time.Millisecond):
	}

	limiter.Release()
	select {
	case <-drained:
		t.Fatal("WaitForDrain returned with one active ingest")
	case <-time.After(50 * time.Millisecond):
	}

	limiter.Release()
	select {
	case err := <-drained:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain did not complete after all released")
	}

	assert.True(t, limiter.TryAcquire(), "slots are usable after a drain")
	limiter.Release()
}

func TestIngestLimiter_WaitForDrainContextCancelled(t *testing.T) {
	limiter := NewIngestLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
	limiter.Release()
}

func TestIngestLimiter_Status(t *testing.T) {
	limiter := NewIngestLimiter(3, time.Second)
	assert.Equal(t, IngestLimiterStatus{Active: 0, Available: 3, MaxConcurrent: 3}, limiter.Status())

	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	assert.Equal(t, IngestLimiterStatus{Active: 2, Available: 1, MaxConcurrent: 3}, limiter.Status())

	limiter.Release()
	limiter.Release()
}

func TestIngestLimiter_DefaultValues(t *testing.T) {
	limiter := NewIngestLimiter(0, 0)

	assert.Equal(t, DefaultMaxConcurrentIngests, limiter.MaxConcurrent())
	assert.Equal(t, DefaultMaxWaitTime, limiter.maxWait)
}
