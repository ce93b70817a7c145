// Package store defines the pluggable key/value store the response cache
// sits on, with two backends: an in-process map with native expiry and a
// NATS JetStream KV bucket with CAS-based atomic updates.
//
// All operations respect the caller's context. Backends report a missing
// key with ErrKeyNotFound so callers can distinguish a clean miss from a
// backend failure.
package store

import (
	"context"
	"errors"
	"time"
)

// Well-known store errors
var (
	ErrKeyNotFound = errors.New("store: key not found")
	ErrConflict    = errors.New("store: concurrent update conflict")
	ErrValueTooBig = errors.New("store: value exceeds size limit")
)

// KV is the minimal key/value contract the cache layer depends on.
//
// Update applies an atomic read-modify-write: fn receives the current
// value (nil when the key is absent) and returns the replacement. The
// written value carries the given ttl. Implementations must guarantee
// that two concurrent Updates of the same key never lose a write; the
// in-memory backend holds a lock across fn, the NATS backend runs a
// compare-and-swap loop.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error
}

// IsNotFound reports whether err indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
