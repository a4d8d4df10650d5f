package api

import "github.com/okian/scorekeeper/pkg/logger"

// Default server configuration constants.
const defaultMaxLeaderboardLimit = 100

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAdminChecker decides which requests may call admin routes.
func WithAdminChecker(c AdminChecker) Option {
	return func(s *Server) {
		if c != nil {
			s.admin = c
		}
	}
}

// WithMaxLeaderboardLimit caps the leaderboard limit parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
