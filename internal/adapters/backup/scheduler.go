package backup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/scorekeeper/pkg/logger"
)

// Snapshotter is what the scheduler triggers.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// Scheduler triggers a snapshot every interval, measured from Run.
type Scheduler struct {
	target   Snapshotter
	interval time.Duration

	started  atomic.Bool
	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(target Snapshotter, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		target:   target,
		interval: interval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("backup-scheduler")
	}
	return s
}

// Run blocks until ctx is canceled or Stop is called. A failed snapshot is
// logged and the loop continues. Stopping interrupts an in-progress snapshot.
func (s *Scheduler) Run(ctx context.Context) {
	s.started.Store(true)
	defer close(s.done)

	if s.interval <= 0 {
		s.logger.Info(ctx, "backup scheduler disabled")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info(ctx, "backup scheduler started", logger.Duration("interval", s.interval))

	for {
		select {
		case <-runCtx.Done():
			s.logger.Info(ctx, "backup scheduler stopped")
			return
		case <-ticker.C:
			// Manager logs and counts the failure.
			_, _ = s.target.Snapshot(runCtx)
		}
	}
}

// Stop signals Run to return and waits for it, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.shutdown) })
	if !s.started.Load() {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "backup scheduler stop timed out")
		return fmt.Errorf("%w: %w", ErrStopTimeout, ctx.Err())
	}
}
