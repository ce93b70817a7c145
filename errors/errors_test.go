package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassString(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Cache", "Get", "backend read")
	require.Error(t, err)
	assert.Equal(t, "Cache.Get: backend read failed: boom", err.Error())
	assert.True(t, errors.Is(err, base))

	assert.NoError(t, Wrap(nil, "Cache", "Get", "backend read"))
}

func TestClassifiedWrappers(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		check func(error) bool
		class ErrorClass
	}{
		{"transient", WrapTransient, IsTransient, ErrorTransient},
		{"invalid", WrapInvalid, IsInvalid, ErrorInvalid},
		{"fatal", WrapFatal, IsFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Loader", "Load", "fetch")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.class, Classify(err))

			var ce *ClassifiedError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "Loader", ce.Component)
			assert.Equal(t, "Load", ce.Operation)
			assert.True(t, errors.Is(err, base))

			assert.NoError(t, tt.wrap(nil, "Loader", "Load", "fetch"))
		})
	}
}

func TestSentinelClassification(t *testing.T) {
	assert.True(t, IsTransient(ErrCacheBackend))
	assert.True(t, IsTransient(ErrInvalidation))
	assert.True(t, IsTransient(context.DeadlineExceeded))

	assert.True(t, IsInvalid(ErrMalformedQuery))
	assert.True(t, IsInvalid(ErrQueryTooComplex))
	assert.True(t, IsInvalid(ErrQueryTooDeep))

	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(ErrMissingConfig))

	// Wrapped sentinels keep their classification.
	wrapped := fmt.Errorf("resolver: %w", ErrQueryTooComplex)
	assert.True(t, IsInvalid(wrapped))
	assert.Equal(t, ErrorInvalid, Classify(wrapped))

	// Unknown errors default to transient.
	assert.Equal(t, ErrorTransient, Classify(errors.New("mystery")))
}

func TestNilChecks(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsFatal(nil))
}
