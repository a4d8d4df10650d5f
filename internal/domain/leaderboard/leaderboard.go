// Package leaderboard derives ranked views from stored scores.
//
// Ordering: value DESC, then user name ASC (byte-wise), then user id ASC
// for users sharing a display name. Every entry gets a
// distinct 1-based rank, so equal values are still ranked sequentially by
// name. The engine never truncates; see Top for display limits.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/metrics"
)

// RankedScore is one leaderboard row.
type RankedScore struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Value    int    `json:"score"`
}

// ScoreReader supplies the raw rows for a level and difficulty.
type ScoreReader interface {
	GetScoresForLevel(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]model.LevelScore, error)
}

// Ranker ranks the scores of one level and difficulty.
type Ranker interface {
	Rank(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]RankedScore, error)
}

// Engine implements Ranker over a ScoreReader.
type Engine struct {
	reader ScoreReader
}

// NewEngine returns an engine reading from r.
func NewEngine(r ScoreReader) *Engine {
	return &Engine{reader: r}
}

// Rank returns the full ranked sequence for the pair.
func (e *Engine) Rank(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]RankedScore, error) {
	start := time.Now()
	defer func() {
		metrics.RecordLeaderboardLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !difficulty.Valid() {
		return nil, fmt.Errorf("leaderboard rank: %w: %d", model.ErrInvalidDifficulty, int(difficulty))
	}
	rows, err := e.reader.GetScoresForLevel(ctx, levelID, difficulty)
	if err != nil {
		return nil, fmt.Errorf("leaderboard rank: %w", err)
	}
	return RankScores(rows), nil
}

// less reports whether a ranks before b: higher value first, then name asc,
// then user id asc.
func less(a, b model.LevelScore) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	if a.UserName != b.UserName {
		return a.UserName < b.UserName
	}
	return a.UserID < b.UserID
}

// RankScores orders rows and assigns sequential ranks. The input is not
// modified.
func RankScores(rows []model.LevelScore) []RankedScore {
	sorted := make([]model.LevelScore, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	out := make([]RankedScore, len(sorted))
	for i, r := range sorted {
		out[i] = RankedScore{Rank: i + 1, UserID: r.UserID, UserName: r.UserName, Value: r.Value}
	}
	return out
}

// Top returns at most n leading entries; n <= 0 returns all of them.
func Top(entries []RankedScore, n int) []RankedScore {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
