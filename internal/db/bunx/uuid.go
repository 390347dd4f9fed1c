package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered id for primary keys. Both dialects store it
// as text, so no database-side generator is needed.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
