package types

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestID generates a UUIDv7 request identifier for log correlation.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRequestID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewStagingToken returns a 32-char hex token for staging file names.
// Time-ordered so leftover staging files sort by creation.
func NewStagingToken() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}
