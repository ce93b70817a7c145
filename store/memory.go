package store

import (
	"context"
	"sync"
	"time"
)

// memoryEntry holds a value with its expiry deadline (zero = no expiry).
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is a thread-safe in-process KV backend with per-entry TTL and a
// background sweep for expired entries. Suitable for single-node
// deployments and tests; the NATS backend covers everything else.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*memoryEntry

	sweepInterval time.Duration
	shutdown      chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithSweepInterval sets how often the background sweep removes expired
// entries. Intervals <= 0 are ignored.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(m *Memory) {
		if interval > 0 {
			m.sweepInterval = interval
		}
	}
}

// NewMemory creates an in-memory KV store and starts its sweep goroutine.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:         make(map[string]*memoryEntry),
		sweepInterval: time.Minute,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.sweep()

	return m
}

// Get returns the value for key, or ErrKeyNotFound when absent or expired.
// Expired entries are removed on read.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	now := time.Now()

	m.mu.RLock()
	entry, exists := m.items[key]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrKeyNotFound
	}

	if entry.expired(now) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// replaced the entry.
		if current, still := m.items[key]; still && current.expired(time.Now()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, ErrKeyNotFound
	}

	// Copy so callers cannot mutate the stored slice.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value under key with the given ttl (<= 0 means no expiry).
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := &memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()

	return nil
}

// Delete removes key, returning ErrKeyNotFound when it was absent.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.items[key]
	if !exists || entry.expired(time.Now()) {
		delete(m.items, key)
		return ErrKeyNotFound
	}

	delete(m.items, key)
	return nil
}

// Update applies fn to the current value of key under the write lock, so
// concurrent read-modify-write cycles on the same key serialize.
func (m *Memory) Update(_ context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []byte
	if entry, exists := m.items[key]; exists && !entry.expired(time.Now()) {
		current = entry.value
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	entry := &memoryEntry{value: next}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.items[key] = entry

	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, entry := range m.items {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

// Close stops the background sweep goroutine.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.shutdown)
	})
	<-m.done
	return nil
}

// sweep periodically removes expired entries.
func (m *Memory) sweep() {
	defer close(m.done)

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	now := time.Now()

	m.mu.Lock()
	for key, entry := range m.items {
		if entry.expired(now) {
			delete(m.items, key)
		}
	}
	m.mu.Unlock()
}

var _ KV = (*Memory)(nil)
