package backup

import "errors"

// Scheduler errors.
var (
	ErrStopTimeout = errors.New("backup scheduler stop timed out")
	ErrNoDirectory = errors.New("backup directory is required")
)
