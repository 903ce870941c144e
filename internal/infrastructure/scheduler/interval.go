package scheduler

import (
	"context"
	"time"

	"DealScanner/internal/ports"
)

// IntervalScheduler runs a job, waits a fixed interval after it completes, and repeats
// until the context is cancelled. Cancellation is only observed between jobs.
type IntervalScheduler struct {
	interval time.Duration
	maxRuns  int
	after    func(time.Duration) <-chan time.Time
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler sleeping interval between runs.
// maxRuns <= 0 means run until cancelled.
func NewIntervalScheduler(interval time.Duration, maxRuns int) *IntervalScheduler {
	return &IntervalScheduler{interval: interval, maxRuns: maxRuns, after: time.After}
}

// Run blocks until ctx is done or maxRuns jobs have completed.
func (s *IntervalScheduler) Run(ctx context.Context, job func(context.Context)) error {
	if job == nil {
		return nil
	}

	for runs := 1; ; runs++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		job(ctx)

		if s.maxRuns > 0 && runs >= s.maxRuns {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(s.interval):
		}
	}
}
