package backup

import (
	"time"

	"github.com/okian/scorekeeper/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithRetain keeps at most n artifacts after each successful snapshot.
// Zero or less keeps everything.
func WithRetain(n int) Option {
	return func(m *Manager) {
		m.retain = n
	}
}

// WithClock sets the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// SchedulerOption applies a configuration option to the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
