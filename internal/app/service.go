// Package service wires the store, leaderboard engine and backups into the
// core API consumed by the command layers.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scorekeeper/internal/adapters/backup"
	"github.com/okian/scorekeeper/internal/adapters/levellist"
	"github.com/okian/scorekeeper/internal/adapters/repository"
	"github.com/okian/scorekeeper/internal/domain/leaderboard"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName          = "github.com/okian/scorekeeper/internal/app"
	defaultDBPath       = "beat_saber_scores.db"
	defaultBackupDir    = "backups"
	defaultBackupPeriod = 24 * time.Hour
	defaultBusyTimeout  = 5 * time.Second
)

// Service is the single core instance. Start opens its components; every
// other method is safe for concurrent use once started.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	ownsStore bool
	engine    *leaderboard.Engine
	backups   *backup.Manager
	scheduler *backup.Scheduler

	// Configuration
	dbPath         string
	busyTimeout    time.Duration
	backupDir      string
	backupInterval time.Duration
	backupRetain   int
	levelListPath  string

	// State
	started bool

	tracer trace.Tracer
	logger logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		ownsStore:      true,
		dbPath:         defaultDBPath,
		busyTimeout:    defaultBusyTimeout,
		backupDir:      defaultBackupDir,
		backupInterval: defaultBackupPeriod,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Start opens the store, imports the level list on first run and starts the
// backup schedule. Calling Start on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting score service...")

	if s.ownsStore || s.store == nil {
		store, err := repository.Open(ctx, s.dbPath,
			repository.WithBusyTimeout(s.busyTimeout),
			repository.WithLogger(s.logger.Named("store")),
		)
		if err != nil {
			return fmt.Errorf("start service: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}

	s.engine = leaderboard.NewEngine(s.store)
	backups, err := backup.NewManager(s.store, s.backupDir,
		backup.WithRetain(s.backupRetain),
		backup.WithLogger(s.logger.Named("backup")),
	)
	if err != nil {
		s.closeOwnedStore(ctx)
		return fmt.Errorf("start service: %w", err)
	}
	s.backups = backups

	s.importOnFirstRun(ctx)

	s.scheduler = backup.NewScheduler(s.backups, s.backupInterval,
		backup.WithSchedulerLogger(s.logger.Named("backup-scheduler")))
	go s.scheduler.Run(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "score service started",
		logger.String("db_path", s.store.Path()),
		logger.String("backup_dir", s.backupDir),
		logger.Duration("backup_interval", s.backupInterval),
	)
	return nil
}

// importOnFirstRun seeds an empty registry from the level list. Failures are
// logged; levels can still be imported later.
func (s *Service) importOnFirstRun(ctx context.Context) {
	if !levellist.Exists(s.levelListPath) {
		return
	}
	n, err := s.store.CountLevels(ctx)
	if err != nil {
		s.logger.Warn(ctx, "level count failed, skipping first-run import", logger.Error(err))
		return
	}
	if n > 0 {
		return
	}
	added, err := importLevelList(ctx, s.store, s.levelListPath)
	if err != nil {
		s.logger.Warn(ctx, "first-run level import failed", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "first-run level import done",
		logger.String("path", s.levelListPath), logger.Int("added", added))
}

// Stop halts the backup schedule and closes the store if the service opened
// it. ctx bounds the wait for an in-progress snapshot.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping score service...")

	var stopErr error
	if s.scheduler != nil {
		stopErr = s.scheduler.Stop(ctx)
	}
	s.closeOwnedStore(ctx)

	s.started = false
	s.logger.Info(ctx, "score service stopped")
	return stopErr
}

func (s *Service) closeOwnedStore(ctx context.Context) {
	if !s.ownsStore || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing store", logger.Error(err))
	}
	s.store = nil
}

// current returns the components of a started service.
func (s *Service) current() (repository.Store, *leaderboard.Engine, *backup.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, fmt.Errorf("%w: %w", model.ErrStorageUnavailable, ErrNotStarted)
	}
	return s.store, s.engine, s.backups, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "Service."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// AddLevel creates a level.
func (s *Service) AddLevel(ctx context.Context, name string) (id model.LevelID, err error) {
	ctx, span := s.startSpan(ctx, "AddLevel", attribute.String("level.name", name))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return 0, err
	}
	return store.AddLevel(ctx, name)
}

// ListLevels returns every level by name ascending.
func (s *Service) ListLevels(ctx context.Context) (levels []model.Level, err error) {
	ctx, span := s.startSpan(ctx, "ListLevels")
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.ListLevels(ctx)
}

// FindLevelByName is an exact lookup.
func (s *Service) FindLevelByName(ctx context.Context, name string) (level model.Level, err error) {
	ctx, span := s.startSpan(ctx, "FindLevelByName", attribute.String("level.name", name))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return model.Level{}, err
	}
	return store.FindLevelByName(ctx, name)
}

// GetLevel looks a level up by id.
func (s *Service) GetLevel(ctx context.Context, id model.LevelID) (level model.Level, err error) {
	ctx, span := s.startSpan(ctx, "GetLevel", attribute.Int64("level.id", int64(id)))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return model.Level{}, err
	}
	return store.GetLevel(ctx, id)
}

// BulkImportLevels adds the new names and returns how many were added.
func (s *Service) BulkImportLevels(ctx context.Context, names []string) (added int, err error) {
	ctx, span := s.startSpan(ctx, "BulkImportLevels", attribute.Int("levels.submitted", len(names)))
	defer func() {
		span.SetAttributes(attribute.Int("levels.added", added))
		endSpan(span, err)
	}()

	store, _, _, err := s.current()
	if err != nil {
		return 0, err
	}
	return store.BulkImportLevels(ctx, names)
}

// ImportLevelList reads the level list at path and bulk imports it.
func (s *Service) ImportLevelList(ctx context.Context, path string) (added int, err error) {
	ctx, span := s.startSpan(ctx, "ImportLevelList", attribute.String("path", path))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return 0, err
	}
	return importLevelList(ctx, store, path)
}

func importLevelList(ctx context.Context, registry repository.LevelRegistry, path string) (int, error) {
	names, err := levellist.ReadFile(ctx, path)
	if err != nil {
		return 0, err
	}
	return registry.BulkImportLevels(ctx, names)
}

// UpsertScore inserts or replaces the score for its key.
func (s *Service) UpsertScore(ctx context.Context, score model.Score) (err error) {
	ctx, span := s.startSpan(ctx, "UpsertScore",
		attribute.String("user.id", score.UserID),
		attribute.Int64("level.id", int64(score.LevelID)),
		attribute.String("difficulty", score.Difficulty.String()),
	)
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return err
	}
	return store.UpsertScore(ctx, score)
}

// GetScore reads one row by key.
func (s *Service) GetScore(ctx context.Context, userID string, levelID model.LevelID, difficulty model.Difficulty) (score model.Score, err error) {
	ctx, span := s.startSpan(ctx, "GetScore",
		attribute.String("user.id", userID),
		attribute.Int64("level.id", int64(levelID)),
	)
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return model.Score{}, err
	}
	return store.GetScore(ctx, userID, levelID, difficulty)
}

// GetUserScores lists a user's rows by level name, then difficulty.
func (s *Service) GetUserScores(ctx context.Context, userID string) (rows []model.UserScore, err error) {
	ctx, span := s.startSpan(ctx, "GetUserScores", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.GetUserScores(ctx, userID)
}

// GetUserScoresByName lists rows stored under a display name. Different
// users sharing the name are all included.
func (s *Service) GetUserScoresByName(ctx context.Context, userName string) (rows []model.NamedUserScore, err error) {
	ctx, span := s.startSpan(ctx, "GetUserScoresByName", attribute.String("user.name", userName))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.GetUserScoresByName(ctx, userName)
}

// GetScoresForLevel returns the unranked rows of one level and difficulty.
func (s *Service) GetScoresForLevel(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) (rows []model.LevelScore, err error) {
	ctx, span := s.startSpan(ctx, "GetScoresForLevel", attribute.Int64("level.id", int64(levelID)))
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.GetScoresForLevel(ctx, levelID, difficulty)
}

// ListDistinctUserNames returns every stored display name once.
func (s *Service) ListDistinctUserNames(ctx context.Context) (names []string, err error) {
	ctx, span := s.startSpan(ctx, "ListDistinctUserNames")
	defer func() { endSpan(span, err) }()

	store, _, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return store.ListDistinctUserNames(ctx)
}

// Rank returns the full ranked leaderboard for a level and difficulty.
func (s *Service) Rank(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) (entries []leaderboard.RankedScore, err error) {
	ctx, span := s.startSpan(ctx, "Rank",
		attribute.Int64("level.id", int64(levelID)),
		attribute.String("difficulty", difficulty.String()),
	)
	defer func() { endSpan(span, err) }()

	_, engine, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return engine.Rank(ctx, levelID, difficulty)
}

// Snapshot writes a backup now and returns its path.
func (s *Service) Snapshot(ctx context.Context) (path string, err error) {
	ctx, span := s.startSpan(ctx, "Snapshot")
	defer func() { endSpan(span, err) }()

	_, _, backups, err := s.current()
	if err != nil {
		return "", err
	}
	return backups.Snapshot(ctx)
}

// ListSnapshots returns existing backup artifacts, oldest first.
func (s *Service) ListSnapshots(ctx context.Context) (paths []string, err error) {
	_, span := s.startSpan(ctx, "ListSnapshots")
	defer func() { endSpan(span, err) }()

	_, _, backups, err := s.current()
	if err != nil {
		return nil, err
	}
	return backups.List()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	store, backups := s.store, s.backups
	s.mu.RUnlock()

	stats := map[string]any{
		"started":        started,
		"dbPath":         s.dbPath,
		"backupDir":      s.backupDir,
		"backupInterval": s.backupInterval.String(),
	}
	if !started {
		return stats
	}

	stats["dbPath"] = store.Path()
	if n, err := store.CountLevels(ctx); err == nil {
		stats["levels"] = n
	}
	if names, err := store.ListDistinctUserNames(ctx); err == nil {
		stats["users"] = len(names)
	}
	if list, err := backups.List(); err == nil {
		stats["snapshots"] = len(list)
	}
	return stats
}
