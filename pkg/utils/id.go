package utils

import "github.com/google/uuid"

// NewUUID7 returns a time-ordered UUID string for instance identifiers.
func NewUUID7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// Suffix returns a unique token suitable for default ids and socket names.
// It prefers a UUIDv7 and falls back to a random UUID if the clock-based
// generator fails.
func Suffix() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
