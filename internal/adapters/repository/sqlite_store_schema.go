package repository

import (
	"context"
)

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS levels (
			level_id INTEGER PRIMARY KEY AUTOINCREMENT,
			level_name TEXT UNIQUE NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			user_id TEXT,
			user_name TEXT,
			level_id INTEGER,
			difficulty TEXT,
			score INTEGER,
			PRIMARY KEY (user_id, level_id, difficulty),
			FOREIGN KEY (level_id) REFERENCES levels(level_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_level_difficulty ON scores(level_id, difficulty);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_name ON scores(user_name);`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
