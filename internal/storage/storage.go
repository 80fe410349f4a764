// Package storage defines the object storage port used by the gallery.
// Swap implementations by changing the concrete type injected at startup:
// Azure Blob, any S3-compatible provider (MinIO, AWS S3) and Google Cloud
// Storage are supported, plus an in-memory store for tests and local runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrContainerExists is returned by CreateContainer when the container is
// already present. EnsureContainer treats it as success.
var ErrContainerExists = errors.New("container already exists")

// Object describes a stored object as reported by a listing.
type Object struct {
	Name string
	Size int64
}

// Storage is the interface for the object store backing the gallery.
type Storage interface {
	// CreateContainer creates the backing container with public read access.
	// It returns an error matching ErrContainerExists when the container is
	// already there.
	CreateContainer(ctx context.Context) error
	// Put streams data to the store under name, replacing any previous
	// object with that name, and returns its public URL.
	Put(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error)
	// List returns every object in the container in the order the backend
	// enumerates them.
	List(ctx context.Context) ([]Object, error)
	// PublicURL constructs the browser-accessible URL for a given name.
	PublicURL(name string) string
}

// EnsureContainer creates the container unless it already exists. Any other
// failure (credentials, network, permissions) is returned to the caller.
func EnsureContainer(ctx context.Context, s Storage) (created bool, err error) {
	err = s.CreateContainer(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrContainerExists):
		return false, nil
	default:
		return false, fmt.Errorf("ensure container: %w", err)
	}
}

// joinURL appends name to base with exactly one slash between them.
func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
