package activity

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// GUIDGenerator mints message identifiers.
type GUIDGenerator interface {
	Generate() string
}

// RandomGUIDs mints 128-bit random GUIDs, hex encoded. Collisions are not
// checked.
type RandomGUIDs struct{}

// Generate implements GUIDGenerator.
func (RandomGUIDs) Generate() string {
	return NewGUID()
}

// NewGUID returns a random (version 4) UUID as 32 lowercase hex digits,
// without dashes.
func NewGUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
