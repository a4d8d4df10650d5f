package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"
)

// AddLevel inserts a level and returns its new id.
func (s *SQLiteStore) AddLevel(ctx context.Context, name string) (model.LevelID, error) {
	const op = "add_level"
	if err := model.ValidateLevelName(name); err != nil {
		metrics.RecordStoreError(op, errorKind(err))
		return 0, err
	}

	var id model.LevelID
	err := s.inTx(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO levels (level_name) VALUES (?)`, name)
		if err != nil {
			return err
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = model.LevelID(lastID)
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			s.logger.Warn(ctx, "level already exists", logger.String("level", name))
			return 0, fmt.Errorf("%s %q: %w", op, name, model.ErrConflict)
		}
		return 0, err
	}

	metrics.RecordLevelAdded()
	s.logger.Info(ctx, "level added", logger.String("level", name), logger.Int64("level_id", int64(id)))
	return id, nil
}

// ListLevels returns all levels by name ascending. SQLite's BINARY collation
// compares bytes, matching Go string ordering.
func (s *SQLiteStore) ListLevels(ctx context.Context) ([]model.Level, error) {
	const op = "list_levels"
	var levels []model.Level
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT level_id, level_name FROM levels ORDER BY level_name ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		levels = levels[:0]
		for rows.Next() {
			var l model.Level
			if err := rows.Scan(&l.ID, &l.Name); err != nil {
				return err
			}
			levels = append(levels, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "levels listed", logger.Int("count", len(levels)))
	return levels, nil
}

// FindLevelByName returns the level with exactly this name.
func (s *SQLiteStore) FindLevelByName(ctx context.Context, name string) (model.Level, error) {
	return s.getLevel(ctx, "find_level_by_name",
		`SELECT level_id, level_name FROM levels WHERE level_name = ?`, name)
}

// GetLevel returns the level with this id.
func (s *SQLiteStore) GetLevel(ctx context.Context, id model.LevelID) (model.Level, error) {
	return s.getLevel(ctx, "get_level",
		`SELECT level_id, level_name FROM levels WHERE level_id = ?`, int64(id))
}

func (s *SQLiteStore) getLevel(ctx context.Context, op, query string, arg any) (model.Level, error) {
	var l model.Level
	err := s.run(ctx, op, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, query, arg).Scan(&l.ID, &l.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %v: %w", op, arg, model.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return model.Level{}, err
	}
	return l, nil
}

// CountLevels returns the number of levels.
func (s *SQLiteStore) CountLevels(ctx context.Context) (int, error) {
	var n int
	err := s.run(ctx, "count_levels", func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM levels`).Scan(&n)
	})
	return n, err
}

// BulkImportLevels adds each trimmed, non-blank name not already present.
// The batch is one transaction. A name rejected by a constraint is logged and
// skipped; unavailable storage aborts the batch, and a retry re-counts.
func (s *SQLiteStore) BulkImportLevels(ctx context.Context, names []string) (int, error) {
	const op = "bulk_import_levels"
	var added int
	err := s.inTx(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		added = 0
		seen := make(map[string]struct{}, len(names))
		for _, raw := range names {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}

			res, err := tx.ExecContext(ctx,
				`INSERT INTO levels (level_name) VALUES (?) ON CONFLICT(level_name) DO NOTHING`, name)
			if err != nil {
				if errors.Is(classify(op, err), model.ErrStorageUnavailable) {
					return err
				}
				s.logger.Warn(ctx, "skipping level", logger.String("level", name), logger.Error(err))
				continue
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordLevelsImported(added)
	s.logger.Info(ctx, "levels imported", logger.Int("added", added), logger.Int("submitted", len(names)))
	return added, nil
}
