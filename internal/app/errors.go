package service

import "errors"

// ErrNotStarted is returned by core calls made before Start or after Stop.
// It is always wrapped together with model.ErrStorageUnavailable.
var ErrNotStarted = errors.New("service not started")
