package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/okian/scorekeeper/internal/adapters/http/api"
	"github.com/okian/scorekeeper/internal/domain/leaderboard"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies is an in-memory stand-in for the score service.
type mockDependencies struct {
	levels    []model.Level
	scores    map[string]model.Score
	ranked    []leaderboard.RankedScore
	imported  []string
	forced    error
	snapshots int

	// afterUpsert runs once a score is stored, standing in for a writer
	// that commits right behind the request.
	afterUpsert func()
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{scores: map[string]model.Score{}}
}

func scoreKey(userID string, levelID model.LevelID, d model.Difficulty) string {
	return fmt.Sprintf("%s/%d/%s", userID, levelID, d)
}

func (m *mockDependencies) AddLevel(_ context.Context, name string) (model.LevelID, error) {
	if m.forced != nil {
		return 0, m.forced
	}
	if strings.TrimSpace(name) == "" {
		return 0, model.ErrInvalidLevelName
	}
	for _, l := range m.levels {
		if l.Name == name {
			return 0, fmt.Errorf("add level: %w", model.ErrConflict)
		}
	}
	id := model.LevelID(len(m.levels) + 1)
	m.levels = append(m.levels, model.Level{ID: id, Name: name})
	return id, nil
}

func (m *mockDependencies) ListLevels(context.Context) ([]model.Level, error) {
	return m.levels, m.forced
}

func (m *mockDependencies) FindLevelByName(_ context.Context, name string) (model.Level, error) {
	for _, l := range m.levels {
		if l.Name == name {
			return l, nil
		}
	}
	return model.Level{}, model.ErrNotFound
}

func (m *mockDependencies) BulkImportLevels(_ context.Context, names []string) (int, error) {
	m.imported = append(m.imported, names...)
	return len(names), nil
}

func (m *mockDependencies) UpsertScore(_ context.Context, s model.Score) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if int(s.LevelID) > len(m.levels) {
		return model.ErrInvalidReference
	}
	m.scores[scoreKey(s.UserID, s.LevelID, s.Difficulty)] = s
	if m.afterUpsert != nil {
		m.afterUpsert()
	}
	return nil
}

func (m *mockDependencies) GetUserScores(context.Context, string) ([]model.UserScore, error) {
	return nil, m.forced
}

func (m *mockDependencies) GetUserScoresByName(_ context.Context, name string) ([]model.NamedUserScore, error) {
	var out []model.NamedUserScore
	for _, s := range m.scores {
		if s.UserName == name {
			out = append(out, model.NamedUserScore{LevelID: s.LevelID, Difficulty: s.Difficulty, Value: s.Value})
		}
	}
	return out, nil
}

func (m *mockDependencies) GetScoresForLevel(context.Context, model.LevelID, model.Difficulty) ([]model.LevelScore, error) {
	return []model.LevelScore{{UserName: "A", Value: 1}}, m.forced
}

func (m *mockDependencies) ListDistinctUserNames(context.Context) ([]string, error) {
	return []string{"A", "B"}, m.forced
}

func (m *mockDependencies) Rank(_ context.Context, _ model.LevelID, d model.Difficulty) ([]leaderboard.RankedScore, error) {
	if !d.Valid() {
		return nil, model.ErrInvalidDifficulty
	}
	return m.ranked, m.forced
}

func (m *mockDependencies) Snapshot(context.Context) (string, error) {
	if m.forced != nil {
		return "", m.forced
	}
	m.snapshots++
	return "backups/scores_backup_20240101_000000.db", nil
}

type mockStatsProvider struct{}

func (mockStatsProvider) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true}
}

func do(h http.Handler, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Health(t *testing.T) {
	Convey("Given the API handler", t, func() {
		h := api.NewServer(newMockDependencies(), mockStatsProvider{}).Handler()

		Convey("Health reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Metrics are exposed", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "scorekeeper_core_http_requests_total")
		})

		Convey("The OpenAPI document is served", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats come from the provider", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})
	})
}

func TestServer_Levels(t *testing.T) {
	Convey("Given the API handler", t, func() {
		deps := newMockDependencies()
		h := api.NewServer(deps, nil).Handler()

		Convey("An empty list is a JSON array", func() {
			w := do(h, http.MethodGet, "/levels", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("Adding a level returns 201 and a duplicate returns 409", func() {
			w := do(h, http.MethodPost, "/levels", `{"name":"Believer"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"level_name":"Believer"`)

			w = do(h, http.MethodPost, "/levels", `{"name":"Believer"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decodeError(w), ShouldEqual, "conflict")
		})

		Convey("A blank name or bad body is 400", func() {
			So(do(h, http.MethodPost, "/levels", `{"name":"  "}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/levels", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/levels", `{"nom":"x"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Lookup by name is exact", func() {
			do(h, http.MethodPost, "/levels", `{"name":"Crab Rave"}`)
			So(do(h, http.MethodGet, "/levels/by-name?name=Crab%20Rave", "").Code, ShouldEqual, http.StatusOK)

			w := do(h, http.MethodGet, "/levels/by-name?name=crab%20rave", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeError(w), ShouldEqual, "not_found")

			So(do(h, http.MethodGet, "/levels/by-name", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Names with slashes and percent signs are found", func() {
			for _, name := range []string{"AC/DC", "50% Off", "a?b#c"} {
				body, _ := json.Marshal(map[string]string{"name": name})
				So(do(h, http.MethodPost, "/levels", string(body)).Code, ShouldEqual, http.StatusCreated)

				w := do(h, http.MethodGet, "/levels/by-name?name="+url.QueryEscape(name), "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var got model.Level
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got.Name, ShouldEqual, name)
			}
		})

		Convey("Unavailable storage is 503 without leaking the cause", func() {
			deps.forced = fmt.Errorf("list: %w: disk I/O error", model.ErrStorageUnavailable)
			w := do(h, http.MethodGet, "/levels", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldNotContainSubstring, "disk")
		})
	})
}

func TestServer_Admin(t *testing.T) {
	Convey("Given a server with an admin token", t, func() {
		deps := newMockDependencies()
		h := api.NewServer(deps, nil, api.WithAdminChecker(api.TokenAdminChecker{Token: "s3cret"})).Handler()

		Convey("Import without the token is forbidden", func() {
			w := do(h, http.MethodPost, "/levels/import", `{"names":["A"]}`)
			So(w.Code, ShouldEqual, http.StatusForbidden)
			So(deps.imported, ShouldBeEmpty)
		})

		Convey("Import with the token succeeds", func() {
			w := do(h, http.MethodPost, "/levels/import", `{"names":["A","B"]}`, api.AdminTokenHeader, "s3cret")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"added":2`)
		})

		Convey("Snapshot requires the token", func() {
			So(do(h, http.MethodPost, "/admin/snapshot", "", api.AdminTokenHeader, "wrong").Code, ShouldEqual, http.StatusForbidden)

			w := do(h, http.MethodPost, "/admin/snapshot", "", api.AdminTokenHeader, "s3cret")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.snapshots, ShouldEqual, 1)
		})

		Convey("A failed snapshot is 500", func() {
			deps.forced = fmt.Errorf("%w: disk full", model.ErrSnapshotFailed)
			w := do(h, http.MethodPost, "/admin/snapshot", "", api.AdminTokenHeader, "s3cret")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decodeError(w), ShouldEqual, "snapshot_failed")
		})
	})

	Convey("Given a server without an admin token", t, func() {
		h := api.NewServer(newMockDependencies(), nil).Handler()

		Convey("Every admin call is forbidden", func() {
			So(do(h, http.MethodPost, "/admin/snapshot", "", api.AdminTokenHeader, "").Code, ShouldEqual, http.StatusForbidden)
		})
	})

	Convey("Given a custom checker", t, func() {
		checker := api.AdminCheckerFunc(func(r *http.Request) bool { return r.Header.Get("X-Role") == "admin" })
		h := api.NewServer(newMockDependencies(), nil, api.WithAdminChecker(checker)).Handler()

		Convey("The caller decides", func() {
			So(do(h, http.MethodPost, "/admin/snapshot", "", "X-Role", "admin").Code, ShouldEqual, http.StatusCreated)
			So(do(h, http.MethodPost, "/admin/snapshot", "", "X-Role", "user").Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestServer_Scores(t *testing.T) {
	Convey("Given a server with one level", t, func() {
		deps := newMockDependencies()
		_, _ = deps.AddLevel(context.Background(), "Believer")
		h := api.NewServer(deps, nil).Handler()

		Convey("A valid score is stored and echoed", func() {
			w := do(h, http.MethodPut, "/scores", `{"user_id":"u1","user_name":"Alice","level_id":1,"difficulty":"Expert+","score":3000000}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"difficulty":"Expert+"`)
			So(w.Body.String(), ShouldContainSubstring, `"score":3000000`)
		})

		Convey("The response is the submitted row even if another write lands first", func() {
			deps.afterUpsert = func() {
				deps.scores[scoreKey("u1", 1, model.Hard)] = model.Score{
					UserID: "u1", UserName: "Other", LevelID: 1, Difficulty: model.Hard, Value: 9,
				}
			}
			w := do(h, http.MethodPut, "/scores", `{"user_id":"u1","user_name":"Alice","level_id":1,"difficulty":"Hard","score":42}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			var got model.Score
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldResemble, model.Score{
				UserID: "u1", UserName: "Alice", LevelID: 1, Difficulty: model.Hard, Value: 42,
			})
		})

		Convey("Validation failures map to 400 with their kind", func() {
			cases := []struct {
				body string
				code string
			}{
				{`{"user_id":"u1","level_id":1,"difficulty":"expert","score":1}`, "invalid_difficulty"},
				{`{"user_id":"u1","level_id":1,"difficulty":"Hard","score":3000001}`, "out_of_range"},
				{`{"user_id":"u1","level_id":1,"difficulty":"Hard","score":-1}`, "out_of_range"},
				{`{"user_id":"u1","level_id":9,"difficulty":"Hard","score":1}`, "invalid_reference"},
				{`{"user_id":"u1","level_id":1,"difficulty":"Hard"}`, "bad_request"},
				{`{"user_id":"","level_id":1,"difficulty":"Hard","score":1}`, "bad_request"},
			}
			for _, tc := range cases {
				w := do(h, http.MethodPut, "/scores", tc.body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w), ShouldEqual, tc.code)
			}
		})

		Convey("User listings return arrays", func() {
			do(h, http.MethodPut, "/scores", `{"user_id":"u1","user_name":"Alice","level_id":1,"difficulty":"Hard","score":5}`)

			w := do(h, http.MethodGet, "/users/u1/scores", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")

			w = do(h, http.MethodGet, "/users?name=Alice", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"difficulty":"Hard"`)

			So(do(h, http.MethodGet, "/users", "").Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodGet, "/users/names", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, `["A","B"]`)
		})

		Convey("Level scores need a valid id and difficulty", func() {
			So(do(h, http.MethodGet, "/levels/1/scores?difficulty=Easy", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/levels/x/scores?difficulty=Easy", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/levels/1/scores", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Leaderboard(t *testing.T) {
	Convey("Given a ranked leaderboard", t, func() {
		deps := newMockDependencies()
		deps.ranked = []leaderboard.RankedScore{
			{Rank: 1, UserName: "B", Value: 200},
			{Rank: 2, UserName: "C", Value: 200},
			{Rank: 3, UserName: "A", Value: 100},
		}
		h := api.NewServer(deps, nil, api.WithMaxLeaderboardLimit(2)).Handler()

		decode := func(w *httptest.ResponseRecorder) []leaderboard.RankedScore {
			var out []leaderboard.RankedScore
			So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
			return out
		}

		Convey("The limit defaults to the maximum", func() {
			w := do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Hard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w), ShouldResemble, deps.ranked[:2])
		})

		Convey("A smaller limit truncates and a larger one is capped", func() {
			So(decode(do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Hard&limit=1", "")), ShouldResemble, deps.ranked[:1])
			So(decode(do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Hard&limit=50", "")), ShouldResemble, deps.ranked[:2])
		})

		Convey("Bad parameters are 400", func() {
			So(do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Hard&limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Hard&limit=abc", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Medium", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/levels/0/leaderboard?difficulty=Hard", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An empty board is an empty array", func() {
			deps.ranked = nil
			w := do(h, http.MethodGet, "/levels/1/leaderboard?difficulty=Easy", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})
	})
}
