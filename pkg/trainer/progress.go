package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
)

// progress aggregates processed-edge counts across workers and throttles
// progress logging. Its lock is a weighted semaphore of size 1 so that
// acquisition can be bounded by a timeout.
type progress struct {
	lock    *semaphore.Weighted
	timeout time.Duration

	total      int64
	processed  int64
	start      time.Time
	interval   time.Duration
	nextReport time.Duration
	alpha      float64

	logger *slog.Logger
}

func newProgress(total int64, alpha float64, interval, timeout time.Duration, logger *slog.Logger) *progress {
	return &progress{
		lock:       semaphore.NewWeighted(1),
		timeout:    timeout,
		total:      total,
		start:      time.Now(),
		interval:   interval,
		nextReport: interval,
		alpha:      alpha,
		logger:     logger,
	}
}

// add records n processed edges. It fails with ErrLockTimeout when the lock
// cannot be taken within the timeout, which means the scheduler is stuck.
// A cancelled ctx returns the context error instead.
func (p *progress) add(ctx context.Context, n int) error {
	acquireCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.lock.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %s", ErrLockTimeout, p.timeout)
	}
	defer p.lock.Release(1)

	p.processed += int64(n)

	elapsed := time.Since(p.start)
	if elapsed >= p.nextReport {
		p.logger.Info("PROGRESS",
			"percent", fmt.Sprintf("%.2f%%", p.percent()),
			"processed", p.processed,
			"alpha", p.alpha,
			"edges_per_sec", rate(p.processed, elapsed),
		)
		p.nextReport = elapsed + p.interval
	}
	return nil
}

func (p *progress) percent() float64 {
	if p.total == 0 {
		return 0
	}
	return 100.0 * float64(p.processed) / float64(p.total)
}

// snapshot returns the processed count and the elapsed time. Only call it
// once every worker has exited.
func (p *progress) snapshot() (int64, time.Duration) {
	return p.processed, time.Since(p.start)
}

func rate(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}
