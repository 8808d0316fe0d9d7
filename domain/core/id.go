package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID        ID
	ExperimentID ID
)

func (id RunID) String() string        { return ID(id).String() }
func (id ExperimentID) String() string { return ID(id).String() }

// NewRunID returns a 32 character lowercase hex identifier.
func NewRunID() RunID {
	return RunID(strings.ReplaceAll(NewID().String(), "-", ""))
}

// ParseRunID parses a string into RunID. Surrounding whitespace is dropped;
// ids are also used as directory names so only [A-Za-z0-9_-] is accepted.
func ParseRunID(s string) (RunID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if !isSafeToken(s) {
		return "", fmt.Errorf("run ID %q contains invalid characters", s)
	}
	return RunID(s), nil
}

// ParseExperimentID parses a string into ExperimentID
func ParseExperimentID(s string) (ExperimentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("experiment ID cannot be empty")
	}
	if !isSafeToken(s) {
		return "", fmt.Errorf("experiment ID %q contains invalid characters", s)
	}
	return ExperimentID(s), nil
}

func isSafeToken(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
