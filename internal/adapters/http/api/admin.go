package api

import (
	"crypto/subtle"
	"net/http"
)

// AdminTokenHeader carries the admin token checked by TokenAdminChecker.
const AdminTokenHeader = "X-Admin-Token"

// AdminChecker reports whether a request comes from an administrator.
// Identity lives with the caller; the API only asks the question.
type AdminChecker interface {
	IsAdmin(r *http.Request) bool
}

// AdminCheckerFunc adapts a function to AdminChecker.
type AdminCheckerFunc func(r *http.Request) bool

// IsAdmin calls f(r).
func (f AdminCheckerFunc) IsAdmin(r *http.Request) bool { return f(r) }

// TokenAdminChecker admits requests presenting the configured token.
// An empty token admits nobody.
type TokenAdminChecker struct {
	Token string
}

// IsAdmin compares the request header against the token in constant time.
func (c TokenAdminChecker) IsAdmin(r *http.Request) bool {
	if c.Token == "" {
		return false
	}
	got := r.Header.Get(AdminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.Token)) == 1
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.admin.IsAdmin(r) {
			s.writeError(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
