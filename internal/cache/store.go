// Package cache provides the TTL key/value stores backing the dividend read path.
// Values are opaque bytes; callers own serialization.
package cache

import (
	"context"
	"time"
)

// Store is a key/value store with per-entry expiry.
type Store interface {
	// Get returns the value and true on a fresh hit, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
}
