package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/s0mar1/tftai.gg-sub000/pkg/retry"
)

// NATSOptions configures the JetStream KV backend.
type NATSOptions struct {
	MaxRetries    int           // Maximum CAS retry attempts
	RetryDelay    time.Duration // Initial delay between CAS retries
	MaxRetryDelay time.Duration // Maximum delay between CAS retries
	Timeout       time.Duration // Per-operation timeout
	MaxValueSize  int           // Maximum encoded value size (default: 1MB)
}

// DefaultNATSOptions returns defaults tuned for high-contention tag
// index updates.
func DefaultNATSOptions() NATSOptions {
	return NATSOptions{
		MaxRetries:    10,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: time.Second,
		Timeout:       5 * time.Second,
		MaxValueSize:  1024 * 1024,
	}
}

// natsEnvelope wraps stored values with an expiry deadline. JetStream KV
// expires per bucket, not per key, so TTLs ride inside the value and
// stale reads are repaired on Get.
type natsEnvelope struct {
	ExpiresAt int64  `json:"exp,omitempty"` // unix seconds, 0 = no expiry
	Data      []byte `json:"data"`
}

func (e *natsEnvelope) expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() > e.ExpiresAt
}

// NATS is a KV backend over a JetStream key/value bucket. Update runs a
// compare-and-swap loop with backoff, so concurrent tag index mutations
// never lose writes.
type NATS struct {
	bucket  jetstream.KeyValue
	options NATSOptions
	logger  *slog.Logger
}

// NewNATS creates a KV store over the given bucket.
func NewNATS(bucket jetstream.KeyValue, logger *slog.Logger, opts ...func(*NATSOptions)) *NATS {
	options := DefaultNATSOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &NATS{
		bucket:  bucket,
		options: options,
		logger:  logger.With("component", "store-nats"),
	}
}

// applyTimeout applies the configured per-operation timeout if set.
func (n *NATS) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.options.Timeout > 0 {
		return context.WithTimeout(ctx, n.options.Timeout)
	}
	return ctx, func() {}
}

// Get retrieves a value, repairing expired entries on read.
func (n *NATS) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := n.applyTimeout(ctx)
	defer cancel()

	entry, err := n.bucket.Get(ctx, key)
	if err != nil {
		if isNATSNotFound(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}

	var env natsEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, fmt.Errorf("kv get %s: decode envelope: %w", key, err)
	}

	if env.expired(time.Now()) {
		// Best-effort removal; the next writer would overwrite anyway.
		if derr := n.bucket.Delete(ctx, key); derr != nil && !isNATSNotFound(derr) {
			n.logger.Debug("failed to delete expired key", "key", key, "error", derr)
		}
		return nil, ErrKeyNotFound
	}

	return env.Data, nil
}

// Set writes a value with the given ttl (last writer wins).
func (n *NATS) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := n.applyTimeout(ctx)
	defer cancel()

	encoded, err := n.encode(value, ttl)
	if err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}

	if _, err := n.bucket.Put(ctx, key, encoded); err != nil {
		return fmt.Errorf("kv set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key, returning ErrKeyNotFound when it was absent.
func (n *NATS) Delete(ctx context.Context, key string) error {
	ctx, cancel := n.applyTimeout(ctx)
	defer cancel()

	if err := n.bucket.Delete(ctx, key); err != nil {
		if isNATSNotFound(err) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Update performs an atomic read-modify-write via CAS with retry. fn
// receives nil when the key is absent. Revision conflicts retry with
// backoff and jitter; fn errors fail fast.
func (n *NATS) Update(ctx context.Context, key string, ttl time.Duration, fn func(current []byte) ([]byte, error)) error {
	ctx, cancel := n.applyTimeout(ctx)
	defer cancel()

	cfg := retry.Config{
		MaxAttempts:  n.options.MaxRetries + 1,
		InitialDelay: n.options.RetryDelay,
		MaxDelay:     n.options.MaxRetryDelay,
		Multiplier:   2.0,
		AddJitter:    true,
	}

	attempt := 0
	err := retry.Do(ctx, cfg, func() error {
		attempt++

		var current []byte
		var revision uint64

		entry, err := n.bucket.Get(ctx, key)
		switch {
		case err == nil:
			var env natsEnvelope
			if derr := json.Unmarshal(entry.Value(), &env); derr != nil {
				return retry.NonRetryable(fmt.Errorf("decode envelope: %w", derr))
			}
			if !env.expired(time.Now()) {
				current = env.Data
			}
			revision = entry.Revision()
		case isNATSNotFound(err):
			// Absent key: fn sees nil, write path uses Create.
		default:
			return fmt.Errorf("kv get during update: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return retry.NonRetryable(err)
		}

		encoded, err := n.encode(next, ttl)
		if err != nil {
			return retry.NonRetryable(err)
		}

		if revision == 0 {
			_, err = n.bucket.Create(ctx, key, encoded)
		} else {
			_, err = n.bucket.Update(ctx, key, encoded, revision)
		}
		if err == nil {
			return nil
		}
		if isNATSConflict(err) {
			n.logger.Debug("kv update conflict, retrying",
				"key", key, "attempt", attempt, "max", cfg.MaxAttempts)
			return err
		}
		return fmt.Errorf("kv write during update: %w", err)
	})

	if err != nil && isNATSConflict(err) {
		return fmt.Errorf("kv update %s: %w", key, ErrConflict)
	}
	return err
}

// encode wraps value in an expiry envelope and enforces the size limit.
func (n *NATS) encode(value []byte, ttl time.Duration) ([]byte, error) {
	env := natsEnvelope{Data: value}
	if ttl > 0 {
		env.ExpiresAt = time.Now().Add(ttl).Unix()
	}

	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if n.options.MaxValueSize > 0 && len(encoded) > n.options.MaxValueSize {
		return nil, fmt.Errorf("%w: size %d exceeds maximum %d",
			ErrValueTooBig, len(encoded), n.options.MaxValueSize)
	}
	return encoded, nil
}

// isNATSNotFound checks if error indicates key not found.
func isNATSNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	// Raw server errors observed in production
	msg := err.Error()
	return strings.Contains(msg, "key not found") ||
		strings.Contains(msg, "10037")
}

// isNATSConflict checks if error indicates a CAS conflict (key exists or
// wrong revision).
func isNATSConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "wrong last sequence") ||
		strings.Contains(msg, "10071") ||
		strings.Contains(msg, "key exists") ||
		strings.Contains(msg, "10058")
}

var _ KV = (*NATS)(nil)
