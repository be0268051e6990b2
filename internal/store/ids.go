package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newUUIDv7 generates a time-ordered record id, the way the teacher repo
// generates ticket ids: embedding a timestamp means callers never need a
// separate autoincrement column to order by creation time, and
// (is_pinned DESC, last_used_at DESC, id ASC) stays index-friendly.
func newUUIDv7() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("generate uuidv7: %w", err)
	}

	return id, nil
}

// parseUUID parses an id string, wrapping ErrInvalidID on failure.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.UUID{}, fmt.Errorf("%w: empty id", ErrInvalidID)
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %q: %v", ErrInvalidID, s, err)
	}

	return id, nil
}

// uuidV7Time extracts the embedded creation timestamp from a UUIDv7.
func uuidV7Time(id uuid.UUID) time.Time {
	sec, nsec := id.Time().UnixTime()

	return time.Unix(sec, nsec).UTC()
}
