package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/scorekeeper/internal/domain/leaderboard"
)

// HandleLeaderboard handles GET /levels/{levelID}/leaderboard?difficulty=&limit=.
// limit defaults to and is capped at the server maximum.
func (s *Server) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
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

	limit := s.maxLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, fmt.Errorf("%w: invalid limit %q", ErrBadRequest, raw))
			return
		}
		limit = min(n, s.maxLimit)
	}

	entries, err := s.deps.Rank(r.Context(), levelID, difficulty)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries = leaderboard.Top(entries, limit)
	if entries == nil {
		entries = []leaderboard.RankedScore{}
	}
	writeJSON(w, http.StatusOK, entries)
}
