package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrObjectNotFound is returned when a location has no stored bytes.
	ErrObjectNotFound = errors.New("object not found")
	// ErrOutsideRoot is returned when a location resolves outside the storage root.
	ErrOutsideRoot = errors.New("location outside storage root")
	// ErrObjectExists is returned when a stored name is already taken.
	ErrObjectExists = errors.New("object already exists")
)

// Provider defines the behavior for any storage backend.
type Provider interface {
	// Put stores body under name and returns the location to persist.
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
	// Open returns the object at location. Containment is checked first.
	Open(ctx context.Context, location string) (*Object, error)
	// Delete removes the object at location; a missing object is not an error.
	Delete(ctx context.Context, location string) error
	// Contains reports whether location lies inside this provider's root.
	Contains(location string) bool
}

// Object is the provider-agnostic representation of a stored file.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}
