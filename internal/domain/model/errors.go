package model

import "errors"

// Sentinel error kinds shared by every layer of the core. Callers match them
// with errors.Is; implementations wrap them with operation context.
var (
	ErrConflict           = errors.New("conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrOutOfRange         = errors.New("score out of range")
	ErrInvalidLevelName   = errors.New("invalid level name")
	ErrInvalidUser        = errors.New("invalid user id")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrSnapshotFailed     = errors.New("snapshot failed")
)

// IsValidation reports whether err is a caller-correctable validation
// failure. Such errors are surfaced as-is and never retried.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidReference),
		errors.Is(err, ErrInvalidDifficulty),
		errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrInvalidLevelName),
		errors.Is(err, ErrInvalidUser):
		return true
	}
	return false
}
