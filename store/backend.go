package store

import (
	"context"
	"time"
)

// Backend is a minimal byte store with TTLs. Implementations must be safe
// for concurrent use and byte-for-byte transparent: Get must return exactly
// the []byte previously passed to Set for the same key (no
// prepended/appended metadata, no transcoding, no mutation).
//
// The keyspace "rec:<ns>:" is owned by the store. Foreign writes under it
// fail strict record validation and are deleted as corrupt.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL (non-positive => no expiry, or
	// the backend's global policy). Returns ok=false when the store
	// rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
