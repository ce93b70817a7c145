package store

import (
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backend behavior against a live JetStream server is covered by the
// deployment test suite; these tests cover the pure parts: envelope
// encoding, expiry, and server error detection.

func TestNATSErrorDetection(t *testing.T) {
	assert.True(t, isNATSNotFound(jetstream.ErrKeyNotFound))
	assert.True(t, isNATSNotFound(jetstream.ErrKeyDeleted))
	assert.True(t, isNATSNotFound(errors.New("nats: key not found")))
	assert.True(t, isNATSNotFound(errors.New("err code 10037")))
	assert.False(t, isNATSNotFound(nil))
	assert.False(t, isNATSNotFound(errors.New("connection refused")))

	assert.True(t, isNATSConflict(jetstream.ErrKeyExists))
	assert.True(t, isNATSConflict(errors.New("wrong last sequence: 12")))
	assert.True(t, isNATSConflict(errors.New("err code 10071")))
	assert.False(t, isNATSConflict(nil))
	assert.False(t, isNATSConflict(errors.New("timeout")))
}

func TestNATSEnvelopeExpiry(t *testing.T) {
	now := time.Now()

	unexpired := natsEnvelope{ExpiresAt: now.Add(time.Hour).Unix()}
	assert.False(t, unexpired.expired(now))

	expired := natsEnvelope{ExpiresAt: now.Add(-time.Hour).Unix()}
	assert.True(t, expired.expired(now))

	forever := natsEnvelope{}
	assert.False(t, forever.expired(now))
}

func TestNATSEncodeSizeLimit(t *testing.T) {
	n := &NATS{options: NATSOptions{MaxValueSize: 64}}

	small, err := n.encode([]byte("ok"), time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, small)

	_, err = n.encode(make([]byte, 128), time.Minute)
	assert.ErrorIs(t, err, ErrValueTooBig)
}

func TestDefaultNATSOptions(t *testing.T) {
	opts := DefaultNATSOptions()
	assert.Equal(t, 10, opts.MaxRetries)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 1024*1024, opts.MaxValueSize)
}
