package store

import "errors"

// Store-local sentinels. Callers above the store boundary (statemachine,
// scheduler) translate these into the coordinator package's own errors
// where a caller-facing distinction matters; kept separate here so a
// store implementation never has to import the caller's
// error-translation policy.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrClosed        = errors.New("store: closed")
)
