package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"

	_ "modernc.org/sqlite"
)

// Default store configuration constants.
const (
	defaultBusyTimeout = 5 * time.Second
	defaultRetryDelay  = 50 * time.Millisecond
	// maxTries is the first attempt plus one retry after a reconnect.
	maxTries = 2
)

// SQLiteStore implements Store on a single SQLite database in WAL mode.
// Readers run concurrently; write transactions begin IMMEDIATE so writers
// queue on the database lock for at most the busy timeout.
type SQLiteStore struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	retryDelay  time.Duration
	logger      logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open store: %w: path is required", model.ErrStorageUnavailable)
	}
	s := &SQLiteStore{
		path:        filepath.Clean(path),
		busyTimeout: defaultBusyTimeout,
		retryDelay:  defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("store")
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("open store: %w: %v", model.ErrStorageUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store: %w: %v", model.ErrStorageUnavailable, err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w: %v", model.ErrStorageUnavailable, err)
	}

	s.logger.Info(ctx, "store opened", logger.String("path", s.path))
	return s, nil
}

func (s *SQLiteStore) dsn() string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.busyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	// SQLite percent-decodes the URI path; escaping keeps '?', '#' and '%'
	// in file names from being read as URI syntax.
	return "file:" + (&url.URL{Path: s.path}).EscapedPath() + "?" + q.Encode()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SnapshotTo writes a consistent copy of the database to dest, which must
// not exist. VACUUM INTO reads inside one transaction, so concurrent writers
// are neither blocked nor partially visible in the copy.
func (s *SQLiteStore) SnapshotTo(ctx context.Context, dest string) error {
	const op = "snapshot"
	if err := s.ready(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds())) }()

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = classify(op, err)
		metrics.RecordStoreError(op, errorKind(err))
		return err
	}
	return nil
}

func (s *SQLiteStore) ready() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("%w: store is not open", model.ErrStorageUnavailable)
	}
	return nil
}

// run executes fn with the store's retry policy and records metrics for op.
// An error classified as storage-unavailable triggers one reconnect (ping)
// and one more attempt; every other error is returned immediately.
func (s *SQLiteStore) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency(op, float64(time.Since(start).Milliseconds())) }()

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordStoreRetry(op)
			if pingErr := s.db.PingContext(ctx); pingErr != nil {
				s.logger.Warn(ctx, "reconnect failed", logger.String("op", op), logger.Error(pingErr))
			}
		}
		err := classify(op, fn(ctx))
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, model.ErrStorageUnavailable) {
			s.logger.Warn(ctx, "storage unavailable",
				logger.String("op", op), logger.Int("attempt", attempt), logger.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		metrics.RecordStoreError(op, errorKind(err))
	}
	return err
}

// inTx runs fn inside a write transaction under the retry policy.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
