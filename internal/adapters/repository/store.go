// Package repository persists levels and scores.
//
// Level Registry and Score Store are two views over one SQLite database;
// every operation runs in its own statement or transaction, so a caller
// never observes a partial write.
package repository

import (
	"context"

	"github.com/okian/scorekeeper/internal/domain/model"
)

// LevelRegistry owns level identity and name uniqueness.
type LevelRegistry interface {
	// AddLevel creates a level. Returns model.ErrConflict if the name exists.
	AddLevel(ctx context.Context, name string) (model.LevelID, error)
	// ListLevels returns every level ordered by name ascending.
	ListLevels(ctx context.Context) ([]model.Level, error)
	// FindLevelByName is an exact, case-sensitive lookup.
	FindLevelByName(ctx context.Context, name string) (model.Level, error)
	// GetLevel looks a level up by id.
	GetLevel(ctx context.Context, id model.LevelID) (model.Level, error)
	// BulkImportLevels adds every new non-blank name and returns how many
	// were added. Re-running it with the same names adds none.
	BulkImportLevels(ctx context.Context, names []string) (int, error)
	// CountLevels returns the number of levels.
	CountLevels(ctx context.Context) (int, error)
}

// ScoreStore owns score rows keyed by (user, level, difficulty).
type ScoreStore interface {
	// UpsertScore inserts or fully replaces the row for the score's key.
	UpsertScore(ctx context.Context, score model.Score) error
	// GetScore reads one row by its key.
	GetScore(ctx context.Context, userID string, levelID model.LevelID, difficulty model.Difficulty) (model.Score, error)
	// GetUserScores lists a user's rows ordered by level name, then difficulty.
	GetUserScores(ctx context.Context, userID string) ([]model.UserScore, error)
	// GetUserScoresByName lists rows whose stored display name matches. Rows
	// of different user ids sharing the name are all returned.
	GetUserScoresByName(ctx context.Context, userName string) ([]model.NamedUserScore, error)
	// GetScoresForLevel returns the unranked rows of one level and difficulty.
	GetScoresForLevel(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]model.LevelScore, error)
	// ListDistinctUserNames returns every stored display name once, sorted.
	ListDistinctUserNames(ctx context.Context) ([]string, error)
}

// Snapshotter writes a consistent copy of the whole database to a new file.
type Snapshotter interface {
	SnapshotTo(ctx context.Context, dest string) error
	// Path is the database file being copied.
	Path() string
}

// Store is the full persistence surface.
type Store interface {
	LevelRegistry
	ScoreStore
	Snapshotter
	Close() error
}
