// Package storage is the object store holding payroll document bytes.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Open when the key has no object.
var ErrObjectNotFound = errors.New("object not found")

// Object is an open, forward-only object stream. Size is the length the
// store reports for the object, independent of how much Body yields.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// ObjectStore is the contract the payroll workflows depend on.
// Delete of a missing key is not an error.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	UploadFile(ctx context.Context, key, path, contentType string) error
	Delete(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (*Object, error)
}
