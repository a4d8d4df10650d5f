package api

import (
	"fmt"
	"net/http"

	"github.com/okian/scorekeeper/internal/domain/model"
)

type addLevelRequest struct {
	Name string `json:"name"`
}

type importLevelsRequest struct {
	Names []string `json:"names"`
}

type importLevelsResponse struct {
	Added int `json:"added"`
}

// HandleListLevels handles GET /levels.
func (s *Server) HandleListLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := s.deps.ListLevels(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if levels == nil {
		levels = []model.Level{}
	}
	writeJSON(w, http.StatusOK, levels)
}

// HandleAddLevel handles POST /levels.
func (s *Server) HandleAddLevel(w http.ResponseWriter, r *http.Request) {
	var req addLevelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.deps.AddLevel(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.Level{ID: id, Name: req.Name})
}

// HandleFindLevel handles GET /levels/by-name?name=. Level names may contain
// any character, including '/', so the name travels in the query.
func (s *Server) HandleFindLevel(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.writeError(w, r, fmt.Errorf("%w: name is required", ErrBadRequest))
		return
	}
	level, err := s.deps.FindLevelByName(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, level)
}

// HandleImportLevels handles POST /levels/import.
func (s *Server) HandleImportLevels(w http.ResponseWriter, r *http.Request) {
	var req importLevelsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	added, err := s.deps.BulkImportLevels(r.Context(), req.Names)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, importLevelsResponse{Added: added})
}
