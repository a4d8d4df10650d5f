package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "scores.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustAddLevel(t *testing.T, s *SQLiteStore, name string) model.LevelID {
	t.Helper()
	id, err := s.AddLevel(context.Background(), name)
	require.NoError(t, err)
	return id
}

func TestOpen_BlankPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scores.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.AddLevel(ctx, "Believer")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CountLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, path, s.Path())
}

func TestOpen_PathWithURISyntax(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "odd?dir#1 100%")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "scores?v=2.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.AddLevel(ctx, "Believer")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.CountLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStore(t *testing.T) {
	var s *SQLiteStore
	assert.NoError(t, s.Close())
	_, err := s.ListLevels(context.Background())
	assert.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestAddLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1 := mustAddLevel(t, s, "Believer")
	id2 := mustAddLevel(t, s, "Crab Rave")
	assert.NotEqual(t, id1, id2)

	_, err := s.AddLevel(ctx, "Believer")
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = s.AddLevel(ctx, "   ")
	require.ErrorIs(t, err, model.ErrInvalidLevelName)

	// case-sensitive names are distinct levels
	mustAddLevel(t, s, "believer")

	n, err := s.CountLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListLevels_OrderedByName(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"Crab Rave", "Believer", "Alone", "believer"} {
		mustAddLevel(t, s, name)
	}

	levels, err := s.ListLevels(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Alone", "Believer", "Crab Rave", "believer"}, names)
}

func TestListLevels_Empty(t *testing.T) {
	s := newTestStore(t)
	levels, err := s.ListLevels(context.Background())
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestFindAndGetLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	l, err := s.FindLevelByName(ctx, "Believer")
	require.NoError(t, err)
	assert.Equal(t, model.Level{ID: id, Name: "Believer"}, l)

	_, err = s.FindLevelByName(ctx, "believer")
	assert.ErrorIs(t, err, model.ErrNotFound)

	l, err = s.GetLevel(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Believer", l.Name)

	_, err = s.GetLevel(ctx, id+100)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBulkImportLevels(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustAddLevel(t, s, "Believer")

	names := []string{"Believer", "  Crab Rave ", "", "   ", "Alone", "Alone"}
	added, err := s.BulkImportLevels(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = s.BulkImportLevels(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	l, err := s.FindLevelByName(ctx, "Crab Rave")
	require.NoError(t, err)
	assert.Equal(t, "Crab Rave", l.Name)

	n, err := s.CountLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestBulkImportLevels_Empty(t *testing.T) {
	s := newTestStore(t)
	added, err := s.BulkImportLevels(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestUpsertScore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	in := model.Score{UserID: "u1", UserName: "Alice", LevelID: id, Difficulty: model.Hard, Value: 1234}
	require.NoError(t, s.UpsertScore(ctx, in))

	got, err := s.GetScore(ctx, "u1", id, model.Hard)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// idempotent
	require.NoError(t, s.UpsertScore(ctx, in))
	rows, err := s.GetUserScores(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpsertScore_OverwritesNameAndValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Alice", LevelID: id, Difficulty: model.Easy, Value: 900}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Alicia", LevelID: id, Difficulty: model.Easy, Value: 100}))

	got, err := s.GetScore(ctx, "u1", id, model.Easy)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.UserName)
	assert.Equal(t, 100, got.Value, "a lower score still replaces the stored one")
}

func TestUpsertScore_Bounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	cases := []struct {
		value int
		err   error
	}{
		{-1, model.ErrOutOfRange},
		{0, nil},
		{3_000_000, nil},
		{3_000_001, model.ErrOutOfRange},
	}
	for _, tc := range cases {
		err := s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Alice", LevelID: id, Difficulty: model.Normal, Value: tc.value})
		if tc.err == nil {
			require.NoError(t, err, "value %d", tc.value)
			got, err := s.GetScore(ctx, "u1", id, model.Normal)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got.Value)
			continue
		}
		assert.ErrorIs(t, err, tc.err, "value %d", tc.value)
	}
}

func TestUpsertScore_ValidationOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// unknown level, bad difficulty and bad value: difficulty wins
	err := s.UpsertScore(ctx, model.Score{UserID: "u1", LevelID: 42, Difficulty: 0, Value: -5})
	assert.ErrorIs(t, err, model.ErrInvalidDifficulty)

	// unknown level and bad value: range wins
	err = s.UpsertScore(ctx, model.Score{UserID: "u1", LevelID: 42, Difficulty: model.Easy, Value: -5})
	assert.ErrorIs(t, err, model.ErrOutOfRange)

	err = s.UpsertScore(ctx, model.Score{UserID: "u1", LevelID: 42, Difficulty: model.Easy, Value: 5})
	assert.ErrorIs(t, err, model.ErrInvalidReference)

	err = s.UpsertScore(ctx, model.Score{UserID: " ", LevelID: 42, Difficulty: model.Easy, Value: 5})
	assert.ErrorIs(t, err, model.ErrInvalidUser)

	names, err := s.ListDistinctUserNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "rejected writes leave the store unchanged")
}

func TestGetScore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	_, err := s.GetScore(ctx, "nobody", id, model.Easy)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.GetScore(ctx, "nobody", id, model.Difficulty(9))
	assert.ErrorIs(t, err, model.ErrInvalidDifficulty)
}

func TestGetUserScores_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	crab := mustAddLevel(t, s, "Crab Rave")
	believer := mustAddLevel(t, s, "Believer")

	writes := []model.Score{
		{UserID: "u1", UserName: "Alice", LevelID: crab, Difficulty: model.Easy, Value: 1},
		{UserID: "u1", UserName: "Alice", LevelID: believer, Difficulty: model.ExpertPlus, Value: 2},
		{UserID: "u1", UserName: "Alice", LevelID: believer, Difficulty: model.Easy, Value: 3},
		{UserID: "u1", UserName: "Alice", LevelID: believer, Difficulty: model.Expert, Value: 4},
		{UserID: "u2", UserName: "Bob", LevelID: believer, Difficulty: model.Hard, Value: 5},
	}
	for _, w := range writes {
		require.NoError(t, s.UpsertScore(ctx, w))
	}

	rows, err := s.GetUserScores(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []model.UserScore{
		{LevelID: believer, LevelName: "Believer", Difficulty: model.Easy, Value: 3},
		{LevelID: believer, LevelName: "Believer", Difficulty: model.Expert, Value: 4},
		{LevelID: believer, LevelName: "Believer", Difficulty: model.ExpertPlus, Value: 2},
		{LevelID: crab, LevelName: "Crab Rave", Difficulty: model.Easy, Value: 1},
	}, rows)

	rows, err = s.GetUserScores(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetUserScoresByName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	l1 := mustAddLevel(t, s, "Believer")
	l2 := mustAddLevel(t, s, "Alone")

	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Sam", LevelID: l2, Difficulty: model.Hard, Value: 10}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u2", UserName: "Sam", LevelID: l1, Difficulty: model.Normal, Value: 20}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Sam", LevelID: l1, Difficulty: model.Easy, Value: 30}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u3", UserName: "sam", LevelID: l1, Difficulty: model.Easy, Value: 40}))

	rows, err := s.GetUserScoresByName(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, []model.NamedUserScore{
		{LevelID: l1, Difficulty: model.Easy, Value: 30},
		{LevelID: l1, Difficulty: model.Normal, Value: 20},
		{LevelID: l2, Difficulty: model.Hard, Value: 10},
	}, rows)
}

func TestGetScoresForLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "a", UserName: "A", LevelID: id, Difficulty: model.Hard, Value: 100}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "b", UserName: "B", LevelID: id, Difficulty: model.Hard, Value: 200}))
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "c", UserName: "C", LevelID: id, Difficulty: model.Easy, Value: 300}))

	rows, err := s.GetScoresForLevel(ctx, id, model.Hard)
	require.NoError(t, err)
	assert.ElementsMatch(t, []model.LevelScore{{UserID: "a", UserName: "A", Value: 100}, {UserID: "b", UserName: "B", Value: 200}}, rows)

	rows, err = s.GetScoresForLevel(ctx, id, model.Expert)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.GetScoresForLevel(ctx, id, 0)
	assert.ErrorIs(t, err, model.ErrInvalidDifficulty)
}

func TestListDistinctUserNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	for i, name := range []string{"bob", "Alice", "Bob", "Alice"} {
		require.NoError(t, s.UpsertScore(ctx, model.Score{
			UserID: fmt.Sprintf("u%d", i), UserName: name, LevelID: id, Difficulty: model.Easy, Value: i,
		}))
	}

	names, err := s.ListDistinctUserNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "bob"}, names)
}

func TestUpsertScore_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.UpsertScore(ctx, model.Score{
				UserID: "u1", UserName: fmt.Sprintf("user-%d", i), LevelID: id, Difficulty: model.Expert, Value: i * 10,
			})
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.GetScore(ctx, "u1", id, model.Expert)
			if errors.Is(err, model.ErrNotFound) {
				errs <- nil
				return
			}
			if err == nil && got.UserName != fmt.Sprintf("user-%d", got.Value/10) {
				err = fmt.Errorf("torn row: %+v", got)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetScore(ctx, "u1", id, model.Expert)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("user-%d", got.Value/10), got.UserName)

	rows, err := s.GetUserScores(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSnapshotTo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustAddLevel(t, s, "Believer")
	require.NoError(t, s.UpsertScore(ctx, model.Score{UserID: "u1", UserName: "Alice", LevelID: id, Difficulty: model.Hard, Value: 77}))

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, s.SnapshotTo(ctx, dest))

	cp, err := Open(ctx, dest)
	require.NoError(t, err)
	defer cp.Close()

	got, err := cp.GetScore(ctx, "u1", id, model.Hard)
	require.NoError(t, err)
	assert.Equal(t, 77, got.Value)

	// VACUUM INTO refuses to overwrite
	assert.Error(t, s.SnapshotTo(ctx, dest))
}

func TestClassify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Nil(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)

	nf := fmt.Errorf("x: %w", model.ErrNotFound)
	assert.Same(t, nf, classify("op", nf))

	err := classify("op", errors.New("disk on fire"))
	assert.ErrorIs(t, err, model.ErrStorageUnavailable)
	assert.Equal(t, "storage_unavailable", errorKind(err))

	_, rawErr := s.db.ExecContext(ctx,
		`INSERT INTO scores (user_id, user_name, level_id, difficulty, score) VALUES ('u', 'n', 999, 'Easy', 1)`)
	require.Error(t, rawErr)
	assert.ErrorIs(t, classify("op", rawErr), model.ErrInvalidReference)

	_, rawErr = s.db.ExecContext(ctx, `INSERT INTO levels (level_name) VALUES ('dup'), ('dup')`)
	require.Error(t, rawErr)
	assert.ErrorIs(t, classify("op", rawErr), model.ErrConflict)
}

func TestRun_RetryPolicy(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "scores.db"), WithRetryDelay(0))
	require.NoError(t, err)
	defer s.Close()

	t.Run("unavailable is retried once", func(t *testing.T) {
		calls := 0
		err := s.run(ctx, "test", func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("database is locked")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("second failure is surfaced as unavailable", func(t *testing.T) {
		calls := 0
		err := s.run(ctx, "test", func(context.Context) error {
			calls++
			return errors.New("disk I/O error")
		})
		require.ErrorIs(t, err, model.ErrStorageUnavailable)
		assert.Equal(t, maxTries, calls)
	})

	t.Run("domain errors are not retried", func(t *testing.T) {
		calls := 0
		err := s.run(ctx, "test", func(context.Context) error {
			calls++
			return fmt.Errorf("level 7: %w", model.ErrInvalidReference)
		})
		require.ErrorIs(t, err, model.ErrInvalidReference)
		assert.Equal(t, 1, calls)
	})
}
