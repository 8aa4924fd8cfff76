package store

import (
	"context"
	"errors"
)

// WatermarkStore persists the highest applied sequence per key.
// Implementations must be safe for concurrent use.
type WatermarkStore interface {
	// Load returns the stored sequence for key. ok is false when none is
	// stored.
	Load(ctx context.Context, key string) (seq int64, ok bool, err error)

	// Save stores seq for key, overwriting any previous value.
	Save(ctx context.Context, key string, seq int64) error

	// SaveAll stores several watermarks, atomically where the backend
	// supports it.
	SaveAll(ctx context.Context, marks map[string]int64) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed
// store.
var ErrStoreClosed = errors.New("store: closed")
