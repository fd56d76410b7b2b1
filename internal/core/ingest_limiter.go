package core

// ingest_limiter.go bounds how many template ingests run at once.
//
// Each ingest holds one database transaction for its whole duration, so the
// limiter keeps a burst of large templates from exhausting the pool. When
// every slot is taken, callers wait up to maxWait and then fail with
// ErrTooManyIngests.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyIngests is returned when no ingest slot frees up within the
// wait time. Clients should retry after a short delay.
var ErrTooManyIngests = errors.New("too many concurrent ingests, please try again later")

// DefaultMaxConcurrentIngests is used when a non-positive limit is given.
const DefaultMaxConcurrentIngests = 4

// DefaultMaxWaitTime is used when a non-positive wait is given.
const DefaultMaxWaitTime = 30 * time.Second

// IngestLimiter is a weighted semaphore with a bounded wait.
type IngestLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewIngestLimiter allows at most maxConcurrent ingests at once.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngests
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &IngestLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. It returns ctx.Err() when
// ctx ends first and ErrTooManyIngests when the wait expires.
// The caller must Release the slot (use defer).
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyIngests
	}
	l.active.Add(1)
	return nil
}

// TryAcquire takes a slot without blocking.
func (l *IngestLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *IngestLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// ActiveCount returns the number of ingests holding a slot.
func (l *IngestLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// MaxConcurrent returns the slot count.
func (l *IngestLimiter) MaxConcurrent() int {
	return int(l.max)
}

// Available returns the number of free slots.
func (l *IngestLimiter) Available() int {
	return int(l.max - l.active.Load())
}

// WaitForDrain blocks until every slot is free or ctx ends. New ingests
// queue behind it, so call it only during shutdown.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, l.max); err != nil {
		return err
	}
	l.sem.Release(l.max)
	return nil
}

// IngestLimiterStatus is a snapshot of the limiter.
type IngestLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for health output.
func (l *IngestLimiter) Status() IngestLimiterStatus {
	active := l.ActiveCount()
	return IngestLimiterStatus{
		Active:        active,
		Available:     int(l.max) - active,
		MaxConcurrent: int(l.max),
	}
}
