package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey signals an insert with an _id that already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidArgument signals a malformed descriptor, path, or parameter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrCancelled signals that the caller's context ended a read.
	ErrCancelled = errors.New("operation cancelled")
	// ErrStorageUnavailable signals a storage backend failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNotFound signals a missing document, collection, or index.
	ErrNotFound = errors.New("not found")
)

// CheckContext converts a finished context into ErrCancelled.
func CheckContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	default:
		return nil
	}
}

// StorageError wraps a backend failure as ErrStorageUnavailable.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
