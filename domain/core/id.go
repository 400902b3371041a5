package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewName creates a short random name (8 hex characters)
func NewName() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// NameOrNew returns name, or a generated one when name is empty
func NameOrNew(name string) string {
	if strings.TrimSpace(name) == "" {
		return NewName()
	}
	return name
}
