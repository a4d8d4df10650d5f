package model

import (
	"fmt"
	"sort"
	"strings"
)

// Inclusive bounds for a score value.
const (
	MinScore = 0
	MaxScore = 3_000_000
)

// Score is one stored row, keyed by (UserID, LevelID, Difficulty).
// UserName is the display name captured when the row was last written; it is
// not kept in sync with later renames.
type Score struct {
	UserID     string     `json:"user_id"`
	UserName   string     `json:"user_name"`
	LevelID    LevelID    `json:"level_id"`
	Difficulty Difficulty `json:"difficulty"`
	Value      int        `json:"score"`
}

// Validate checks the write preconditions that do not need storage:
// difficulty first, then range, then user id.
func (s Score) Validate() error {
	if !s.Difficulty.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidDifficulty, int(s.Difficulty))
	}
	if s.Value < MinScore || s.Value > MaxScore {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, s.Value, MinScore, MaxScore)
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: user id must not be blank", ErrInvalidUser)
	}
	return nil
}

// UserScore is a row of a user's listing joined with the level name.
type UserScore struct {
	LevelID    LevelID    `json:"level_id"`
	LevelName  string     `json:"level_name"`
	Difficulty Difficulty `json:"difficulty"`
	Value      int        `json:"score"`
}

// NamedUserScore is a row returned by a display-name lookup.
type NamedUserScore struct {
	LevelID    LevelID    `json:"level_id"`
	Difficulty Difficulty `json:"difficulty"`
	Value      int        `json:"score"`
}

// LevelScore is a raw, unranked row for one level and difficulty.
type LevelScore struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Value    int    `json:"score"`
}

// SortUserScores orders by level name, then difficulty rank.
func SortUserScores(rows []UserScore) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].LevelName != rows[j].LevelName {
			return rows[i].LevelName < rows[j].LevelName
		}
		return rows[i].Difficulty.Rank() < rows[j].Difficulty.Rank()
	})
}

// SortNamedUserScores orders by level id, then difficulty rank.
func SortNamedUserScores(rows []NamedUserScore) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].LevelID != rows[j].LevelID {
			return rows[i].LevelID < rows[j].LevelID
		}
		return rows[i].Difficulty.Rank() < rows[j].Difficulty.Rank()
	})
}
