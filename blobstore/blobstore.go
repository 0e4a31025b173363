// Package blobstore is the coordinator's minimal contract with the
// out-of-scope object-storage collaborator: it never reads or writes
// content bytes itself, only resolves an opaque storage URL to a
// Descriptor for download redirection and confirms a URL's existence
// before it is recorded on a Content row.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound indicates the referenced storage URL has no backing
// object.
var ErrNotFound = errors.New("blobstore: object not found")

// Descriptor is what the coordinator exposes to a caller resolving a
// content item's storage URL for download (or redirect).
type Descriptor struct {
	URL    string
	Size   int64
	SHA256 string
	MIME   string
}

// Store is the blob-storage collaborator interface. The coordinator core
// depends only on this; concrete backends live beside it.
type Store interface {
	// Descriptor resolves url to its current Descriptor.
	Descriptor(ctx context.Context, url string) (Descriptor, error)

	// PresignedGetURL returns a time-limited direct download URL for
	// url, when the backend supports presigning; backends that do not
	// return the empty string and a nil error, and callers fall back to
	// proxying the object through the coordinator itself.
	PresignedGetURL(ctx context.Context, url string) (string, error)
}
