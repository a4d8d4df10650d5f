package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/okian/scorekeeper/internal/domain/model"
)

// scoreRequest mirrors the body of PUT /scores.
type scoreRequest struct {
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	LevelID    int64  `json:"level_id"`
	Difficulty string `json:"difficulty"`
	Score      *int   `json:"score"`
}

func (req scoreRequest) toScore() (model.Score, error) {
	difficulty, err := model.ParseDifficulty(req.Difficulty)
	if err != nil {
		return model.Score{}, err
	}
	if req.Score == nil {
		return model.Score{}, fmt.Errorf("%w: missing score", ErrBadRequest)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return model.Score{}, fmt.Errorf("%w: missing user_id", ErrBadRequest)
	}
	return model.Score{
		UserID:     req.UserID,
		UserName:   req.UserName,
		LevelID:    model.LevelID(req.LevelID),
		Difficulty: difficulty,
		Value:      *req.Score,
	}, nil
}

// HandlePutScore handles PUT /scores and echoes the row it wrote.
func (s *Server) HandlePutScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := req.toScore()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.UpsertScore(r.Context(), score); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// HandleUserScores handles GET /users/{userID}/scores.
func (s *Server) HandleUserScores(w http.ResponseWriter, r *http.Request) {
	rows, err := s.deps.GetUserScores(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.UserScore{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleUsersByName handles GET /users?name=.
func (s *Server) HandleUsersByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, r, fmt.Errorf("%w: name is required", ErrBadRequest))
		return
	}
	rows, err := s.deps.GetUserScoresByName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.NamedUserScore{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleUserNames handles GET /users/names.
func (s *Server) HandleUserNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.ListDistinctUserNames(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// HandleLevelScores handles GET /levels/{levelID}/scores?difficulty=.
func (s *Server) HandleLevelScores(w http.ResponseWriter, r *http.Request) {
	levelID, err := levelIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	difficulty, err := difficultyParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.deps.GetScoresForLevel(r.Context(), levelID, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.LevelScore{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type snapshotResponse struct {
	Path string `json:"path"`
}

// HandleSnapshot handles POST /admin/snapshot.
func (s *Server) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse{Path: path})
}
