// Package ids generates row identifiers.
package ids

import (
	"github.com/google/uuid"
	"github.com/runoshun/taskcal/internal/domain"
)

// Ensure UUID implements domain.IDGenerator.
var _ domain.IDGenerator = UUID{}

// UUID generates random (version 4) UUIDs.
type UUID struct{}

// NewID returns a new UUID string.
func (UUID) NewID() string {
	return uuid.NewString()
}
