// Package api exposes the score service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/okian/scorekeeper/internal/adapters/http/swagger"
	"github.com/okian/scorekeeper/internal/domain/leaderboard"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
)

// maxBodyBytes bounds request bodies, including bulk imports.
const maxBodyBytes = 1 << 20

// LevelDependencies covers the level registry operations.
type LevelDependencies interface {
	AddLevel(ctx context.Context, name string) (model.LevelID, error)
	ListLevels(ctx context.Context) ([]model.Level, error)
	FindLevelByName(ctx context.Context, name string) (model.Level, error)
	BulkImportLevels(ctx context.Context, names []string) (int, error)
}

// ScoreDependencies covers score writes and listings.
type ScoreDependencies interface {
	UpsertScore(ctx context.Context, score model.Score) error
	GetUserScores(ctx context.Context, userID string) ([]model.UserScore, error)
	GetUserScoresByName(ctx context.Context, userName string) ([]model.NamedUserScore, error)
	GetScoresForLevel(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]model.LevelScore, error)
	ListDistinctUserNames(ctx context.Context) ([]string, error)
}

// LeaderboardDependencies covers ranking.
type LeaderboardDependencies interface {
	Rank(ctx context.Context, levelID model.LevelID, difficulty model.Difficulty) ([]leaderboard.RankedScore, error)
}

// SnapshotDependencies covers on-demand backups.
type SnapshotDependencies interface {
	Snapshot(ctx context.Context) (string, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	LevelDependencies
	ScoreDependencies
	LeaderboardDependencies
	SnapshotDependencies
}

// Server wires HTTP routes for the score API.
type Server struct {
	deps     Dependencies
	stats    StatsProvider
	admin    AdminChecker
	maxLimit int
	logger   logger.Logger
}

// NewServer creates a server. Without WithAdminChecker every admin route is
// forbidden.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		stats:    stats,
		admin:    TokenAdminChecker{},
		maxLimit: defaultMaxLeaderboardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", metricsHandler())
	r.Get("/stats", s.HandleStats)
	swagger.Register(r)

	r.Route("/levels", func(r chi.Router) {
		r.Get("/", s.HandleListLevels)
		r.Post("/", s.HandleAddLevel)
		r.Get("/by-name", s.HandleFindLevel)
		r.With(s.requireAdmin).Post("/import", s.HandleImportLevels)
		r.Get("/{levelID}/scores", s.HandleLevelScores)
		r.Get("/{levelID}/leaderboard", s.HandleLeaderboard)
	})

	r.Put("/scores", s.HandlePutScore)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", s.HandleUsersByName)
		r.Get("/names", s.HandleUserNames)
		r.Get("/{userID}/scores", s.HandleUserScores)
	})

	r.With(s.requireAdmin).Post("/admin/snapshot", s.HandleSnapshot)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status. Server-side failures are logged and
// answered with the status text only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrInvalidReference):
		return http.StatusBadRequest, "invalid_reference"
	case errors.Is(err, model.ErrInvalidDifficulty):
		return http.StatusBadRequest, "invalid_difficulty"
	case errors.Is(err, model.ErrOutOfRange):
		return http.StatusBadRequest, "out_of_range"
	case errors.Is(err, model.ErrInvalidLevelName),
		errors.Is(err, model.ErrInvalidUser),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, model.ErrSnapshotFailed):
		return http.StatusInternalServerError, "snapshot_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	}
	return http.StatusInternalServerError, "internal_error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	return nil
}

func levelIDParam(r *http.Request) (model.LevelID, error) {
	raw := chi.URLParam(r, "levelID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid level id %q", ErrBadRequest, raw)
	}
	return model.LevelID(id), nil
}

func difficultyParam(r *http.Request) (model.Difficulty, error) {
	raw := r.URL.Query().Get("difficulty")
	if raw == "" {
		return 0, fmt.Errorf("%w: difficulty is required", model.ErrInvalidDifficulty)
	}
	return model.ParseDifficulty(raw)
}
