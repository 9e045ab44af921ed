package utils

import "github.com/google/uuid"

// NewUUID returns a time-ordered (v7) UUID string.
func NewUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}

	return uuid.NewString()
}

// ShortID returns the first n hex characters of a random UUID, for human-facing suffixes.
func ShortID(n int) string {
	s := uuid.NewString()
	s = s[:8] + s[9:13]
	if n > len(s) {
		n = len(s)
	}

	return s[:n]
}
