// Package uuid provides ID generation helpers.
package uuid

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7 string, or a random UUIDv4 when the
// v7 generator fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
