// Package idgen generates the identifiers used across the coordination
// core: 16-char lowercase hex ids for content and tasks, and uuid-based
// tokens for executor registration epochs.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// ContentID returns a fresh 16-char lowercase hex id, suitable for both
// Content.ID and Task.ID.
func ContentID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the standard reader does not fail in
		// practice; a uuid fallback keeps this function infallible.
		u := uuid.New()
		return hex.EncodeToString(u[:8])
	}
	return hex.EncodeToString(b[:])
}

// TaskID is an alias for ContentID: tasks and content share the same id
// shape.
func TaskID() string { return ContentID() }

// Epoch returns a fresh opaque token identifying one executor
// registration lifetime, so the gateway can distinguish a reconnecting
// executor from a stale duplicate session.
func Epoch() string {
	return uuid.New().String()
}

// ExecutorID returns a fresh executor id.
func ExecutorID() string {
	return uuid.New().String()
}

// GenerationID returns a fresh id for a state-store-internal entity that
// does not need the 16-char content/task shape (e.g. a namespace-scoped
// subscriber key). Kept distinct from ContentID so a reviewer can tell
// at a glance which id-space a value belongs to.
func GenerationID() string {
	return uuid.New().String()
}
