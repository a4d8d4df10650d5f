package service

import (
	"time"

	"github.com/okian/scorekeeper/internal/adapters/repository"
	"github.com/okian/scorekeeper/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore injects an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.ownsStore = false
		}
	}
}

// WithDBPath sets the database file opened on Start.
func WithDBPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithBusyTimeout bounds how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithBackupDir sets where snapshots are written.
func WithBackupDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.backupDir = dir
		}
	}
}

// WithBackupInterval sets the snapshot period. Zero disables the schedule;
// on-demand snapshots still work.
func WithBackupInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.backupInterval = d
		}
	}
}

// WithBackupRetain keeps at most n snapshots. Zero keeps all.
func WithBackupRetain(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.backupRetain = n
		}
	}
}

// WithLevelListPath sets the level list imported on first start.
// An empty path disables the import.
func WithLevelListPath(path string) Option {
	return func(s *Service) {
		s.levelListPath = path
	}
}

// WithTracer sets the tracer used for core call spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}
