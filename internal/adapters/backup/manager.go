// Package backup writes point-in-time copies of the score database.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"
)

const (
	timestampLayout = "20060102_150405"
	dirPerm         = 0o755
)

// Source produces a consistent copy of the database at dest. dest must not
// exist beforehand.
type Source interface {
	SnapshotTo(ctx context.Context, dest string) error
	Path() string
}

// Manager names, writes and prunes snapshot artifacts. Snapshots are
// serialized with each other.
type Manager struct {
	source Source
	dir    string
	retain int
	now    func() time.Time
	logger logger.Logger

	mu sync.Mutex
}

// NewManager creates a manager writing into dir.
func NewManager(source Source, dir string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrNoDirectory
	}
	m := &Manager{
		source: source,
		dir:    filepath.Clean(dir),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("backup")
	}
	return m, nil
}

// Dir returns the backup directory.
func (m *Manager) Dir() string { return m.dir }

// Snapshot writes <dir>/<base>_backup_<YYYYMMDD_HHMMSS><ext> and returns its
// path. The copy lands under a temporary name first and is renamed only once
// complete, so a visible artifact is never partial.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	path, err := m.snapshot(ctx)
	if err != nil {
		metrics.RecordSnapshotFailure()
		m.logger.Error(ctx, "snapshot failed", logger.Error(err))
		return "", err
	}

	finished := time.Now()
	metrics.RecordSnapshot(float64(finished.Sub(start).Milliseconds()), float64(finished.Unix()))
	m.logger.Info(ctx, "snapshot written",
		logger.String("path", path),
		logger.Duration("took", finished.Sub(start)))

	if m.retain > 0 {
		m.prune(ctx)
	}
	return path, nil
}

func (m *Manager) snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrSnapshotFailed, err)
	}
	if err := os.MkdirAll(m.dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %v", model.ErrSnapshotFailed, err)
	}

	base, ext := m.nameParts()
	final := filepath.Join(m.dir, base+"_backup_"+m.now().Format(timestampLayout)+ext)
	tmp := filepath.Join(m.dir, "."+base+"_"+uuid.NewString()+".tmp")

	if err := m.source.SnapshotTo(ctx, tmp); err != nil {
		m.removeQuietly(ctx, tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", model.ErrSnapshotFailed, ctxErr)
		}
		return "", fmt.Errorf("%w: %v", model.ErrSnapshotFailed, err)
	}
	if err := ctx.Err(); err != nil {
		m.removeQuietly(ctx, tmp)
		return "", fmt.Errorf("%w: %w", model.ErrSnapshotFailed, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		m.removeQuietly(ctx, tmp)
		return "", fmt.Errorf("%w: rename: %v", model.ErrSnapshotFailed, err)
	}
	return final, nil
}

// List returns the existing artifacts, oldest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	base, ext := m.nameParts()
	prefix := base + "_backup_"
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ext)
		if _, err := time.Parse(timestampLayout, stamp); err != nil {
			continue
		}
		out = append(out, filepath.Join(m.dir, name))
	}
	// fixed-width timestamps sort chronologically
	sort.Strings(out)
	return out, nil
}

func (m *Manager) prune(ctx context.Context) {
	artifacts, err := m.List()
	if err != nil {
		m.logger.Warn(ctx, "retention skipped", logger.Error(err))
		return
	}
	if len(artifacts) <= m.retain {
		return
	}

	removed := 0
	for _, path := range artifacts[:len(artifacts)-m.retain] {
		if err := os.Remove(path); err != nil {
			m.logger.Warn(ctx, "failed to remove old snapshot", logger.String("path", path), logger.Error(err))
			continue
		}
		removed++
	}
	metrics.RecordSnapshotsPruned(removed)
	m.logger.Debug(ctx, "old snapshots removed", logger.Int("removed", removed))
}

func (m *Manager) nameParts() (base, ext string) {
	name := filepath.Base(m.source.Path())
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func (m *Manager) removeQuietly(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn(ctx, "failed to remove temp snapshot",
			logger.String("path", path), logger.Error(err))
	}
}
