package repository

import (
	"time"

	"github.com/okian/scorekeeper/pkg/logger"
)

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithBusyTimeout bounds how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d >= 0 {
			s.busyTimeout = d
		}
	}
}

// WithRetryDelay sets the pause between an unavailable-storage failure and
// the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}
