package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/scorekeeper/internal/domain/model"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// domainErrors are the kinds a store error may already carry.
var domainErrors = []error{
	model.ErrConflict,
	model.ErrNotFound,
	model.ErrInvalidReference,
	model.ErrInvalidDifficulty,
	model.ErrOutOfRange,
	model.ErrInvalidLevelName,
	model.ErrInvalidUser,
	model.ErrStorageUnavailable,
}

// classify maps a raw driver error onto a domain kind. Errors that already
// carry a kind and context errors are returned unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, kind := range domainErrors {
		if errors.Is(err, kind) {
			return err
		}
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, model.ErrConflict)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, model.ErrInvalidReference)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, model.ErrStorageUnavailable, err)
}

// errorKind names the domain kind of err for metrics labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, model.ErrInvalidDifficulty):
		return "invalid_difficulty"
	case errors.Is(err, model.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, model.ErrInvalidLevelName):
		return "invalid_level_name"
	case errors.Is(err, model.ErrInvalidUser):
		return "invalid_user"
	case errors.Is(err, model.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "unknown"
}
