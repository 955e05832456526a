package utils

import (
	"github.com/google/uuid"
)

// ID is the 128-bit identifier used throughout the engine for plugins,
// resources, systems and jobs. It is a plain value type so it can be
// used as a map key and compared with ==.
type ID = uuid.UUID

// NilID is the zero-value ID, used as a "not set" sentinel.
var NilID = uuid.Nil

// NewID allocates a new random 128-bit identifier.
func NewID() ID {
	return uuid.New()
}

// ParseID parses the canonical string form of an ID.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}
