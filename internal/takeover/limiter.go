package takeover

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter admits a bounded number of concurrent evaluations
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

type weightedLimiter struct {
	sem *semaphore.Weighted
}

// NewLimiter returns a counting limiter with k slots (at least one)
func NewLimiter(k int) Limiter {
	if k < 1 {
		k = 1
	}
	return &weightedLimiter{sem: semaphore.NewWeighted(int64(k))}
}

func (l *weightedLimiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *weightedLimiter) Release() {
	l.sem.Release(1)
}
