// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the interface for storing and retrieving binary objects.
type ObjectStorage interface {
	// Upload streams data to the store under the given key, overwriting
	// any existing object.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Get opens a read stream for the object at key. The object's existence
	// is confirmed before the stream is opened, so a missing object surfaces
	// as ErrObjectNotFound rather than a mid-stream failure.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Deleting a non-existent key is not
	// an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object whose key starts with prefix.
	// An already-empty prefix is a no-op.
	DeletePrefix(ctx context.Context, prefix string) error
}
