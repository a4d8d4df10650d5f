package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/okian/scorekeeper/pkg/metrics"
)

// UpsertScore writes the row for (user, level, difficulty), replacing the
// stored name and value together. Validation runs in the order difficulty,
// range, level existence; a rejected write leaves the store unchanged.
func (s *SQLiteStore) UpsertScore(ctx context.Context, score model.Score) error {
	const op = "upsert_score"
	if err := score.Validate(); err != nil {
		metrics.RecordStoreError(op, errorKind(err))
		return err
	}

	err := s.inTx(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM levels WHERE level_id = ?`, int64(score.LevelID)).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: level %d: %w", op, score.LevelID, model.ErrInvalidReference)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO scores (user_id, user_name, level_id, difficulty, score)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id, level_id, difficulty)
			DO UPDATE SET user_name = excluded.user_name, score = excluded.score`,
			score.UserID, score.UserName, int64(score.LevelID), score.Difficulty.String(), score.Value)
		return err
	})
	if err != nil {
		return err
	}

	metrics.RecordScoreUpserted()
	s.logger.Debug(ctx, "score upserted",
		logger.String("user_id", score.UserID),
		logger.Int64("level_id", int64(score.LevelID)),
		logger.String("difficulty", score.Difficulty.String()),
		logger.Int("score", score.Value))
	return nil
}

// GetScore reads the row for one key.
func (s *SQLiteStore) GetScore(ctx context.Context, userID string, levelID model.LevelID, difficulty model.Difficulty) (model.Score, error) {
	const op = "get_score"
	if !difficulty.Valid() {
		return model.Score{}, fmt.Errorf("%w: %d", model.ErrInvalidDifficulty, int(difficulty))
	}

	out := model.Score{UserID: userID, LevelID: levelID, Difficulty: difficulty}
	err := s.run(ctx, op, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx,
			`SELECT user_name, score FROM scores WHERE user_id = ? AND level_id = ? AND difficulty = ?`,
			userID, int64(levelID), difficulty.String()).Scan(&out.UserName, &out.Value)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, model.ErrNotFound)
		}
		return err
	})
	if err != nil {
		return model.Score{}, err
	}
	return out, nil
}

// GetUserScores lists a user's rows joined with level names.
func (s *SQLiteStore) GetUserScores(ctx context.Context, userID string) ([]model.UserScore, error) {
	const op = "get_user_scores"
	var out []model.UserScore
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT l.level_id, l.level_name, s.difficulty, s.score
			FROM scores s
			JOIN levels l ON l.level_id = s.level_id
			WHERE s.user_id = ?`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				r   model.UserScore
				raw string
			)
			if err := rows.Scan(&r.LevelID, &r.LevelName, &raw, &r.Value); err != nil {
				return err
			}
			if r.Difficulty, err = storedDifficulty(raw); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	model.SortUserScores(out)
	return out, nil
}

// GetUserScoresByName lists rows whose stored display name equals userName.
func (s *SQLiteStore) GetUserScoresByName(ctx context.Context, userName string) ([]model.NamedUserScore, error) {
	const op = "get_user_scores_by_name"
	var out []model.NamedUserScore
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT level_id, difficulty, score FROM scores WHERE user_name = ?`, userName)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				r   model.NamedUserScore
				raw string
			)
			if err := rows.Scan(&r.LevelID, &raw, &r.Value); err != nil {
				return err
			}
			if r.Difficulty, err = storedDifficulty(raw); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	model.SortNamedUserScores(out)
	return out, nil
}

// GetScoresForLevel returns the rows of one level and difficulty in no
// particular order. Ranking is the leaderboard engine's job.
func (s *SQLiteStore) GetScoresForLevel(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]model.LevelScore, error) {
	const op = "get_scores_for_level"
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidDifficulty, int(difficulty))
	}

	var out []model.LevelScore
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT user_id, user_name, score FROM scores WHERE level_id = ? AND difficulty = ?`,
			int64(levelID), difficulty.String())
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var r model.LevelScore
			if err := rows.Scan(&r.UserID, &r.UserName, &r.Value); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDistinctUserNames returns every stored display name once, ascending.
func (s *SQLiteStore) ListDistinctUserNames(ctx context.Context) ([]string, error) {
	const op = "list_distinct_user_names"
	var out []string
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_name FROM scores ORDER BY user_name ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			out = append(out, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// storedDifficulty parses a difficulty read back from the database. A value
// the schema should never hold means the file is damaged.
func storedDifficulty(raw string) (model.Difficulty, error) {
	d, err := model.ParseDifficulty(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: stored difficulty %q", model.ErrStorageUnavailable, raw)
	}
	return d, nil
}
