package gatekit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrorWrapping tests the Error container against errors.Is
func TestErrorWrapping(t *testing.T) {
	err := NewError(ErrInvalidToken, "rejected").
		WithPath("blog/<int:year>/").
		WithReason(DenyInvalidToken)

	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.False(t, errors.Is(err, ErrNoToken))
	assert.Equal(t, "blog/<int:year>/", err.Path)
	assert.Equal(t, DenyInvalidToken, err.Reason)
	assert.Equal(t, "gatekit: invalid token: rejected", err.Error())
}

// TestErrorWithoutMessage tests the bare sentinel rendering
func TestErrorWithoutMessage(t *testing.T) {
	err := NewError(ErrNoToken, "")
	assert.Equal(t, ErrNoToken.Error(), err.Error())
	assert.Equal(t, ErrNoToken, errors.Unwrap(err))
}

// TestErrorDoubleWrap tests classification through fmt wrapping
func TestErrorDoubleWrap(t *testing.T) {
	inner := NewError(ErrStoreUnavailable, "connection refused")
	outer := fmt.Errorf("authorize request: %w", inner)

	assert.True(t, IsStoreUnavailable(outer))
	assert.False(t, IsInvalidToken(outer))
}

// TestErrorClassifiers tests the IsXxx helpers
func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsDenied(NewError(ErrNoToken, "")))
	assert.True(t, IsDenied(NewError(ErrInvalidToken, "")))
	assert.False(t, IsDenied(NewError(ErrStoreUnavailable, "")))

	assert.True(t, IsInvalidToken(ErrInvalidToken))
	assert.True(t, IsStoreUnavailable(ErrStoreUnavailable))
	assert.True(t, IsInvalidPattern(NewError(ErrInvalidPattern, "bad converter")))

	assert.False(t, IsDenied(nil))
	assert.False(t, IsStoreUnavailable(nil))
}
