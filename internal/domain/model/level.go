// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// LevelID identifies a level. Assigned by the registry, never reused.
type LevelID int64

// Level is a named game stage that scores are recorded against.
type Level struct {
	ID   LevelID `json:"level_id"`
	Name string  `json:"level_name"`
}

// ValidateLevelName rejects names that are empty after trimming.
func ValidateLevelName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidLevelName)
	}
	return nil
}
