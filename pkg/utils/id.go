package utils

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7, falling back to v4.
func NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
