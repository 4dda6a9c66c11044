// Package blobstore abstracts durable storage for snapshot artifacts.
//
// The catalog always saves to the local filesystem; a Store can additionally
// mirror the artifact pair to S3-compatible object storage and serve as a
// fallback source on cold start.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction for reading and writing whole blobs.
type Store interface {
	// Put writes a blob atomically under name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads the blob stored under name.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
