package gatekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for GateKit operations.
var (
	// ErrNoToken is returned when a protected path is requested without any
	// token (no cookie, no query parameter).
	ErrNoToken = errors.New("gatekit: no token provided")

	// ErrInvalidToken is returned when a presented token cannot authorize the
	// request. Not-found, revoked, expired, exhausted, and pattern-mismatch
	// all collapse into this single externally visible reason.
	ErrInvalidToken = errors.New("gatekit: invalid token")

	// ErrTokenNotFound is returned by management operations when a token
	// record does not exist.
	ErrTokenNotFound = errors.New("gatekit: token not found")

	// ErrInvalidPattern is returned when a path template cannot be parsed.
	ErrInvalidPattern = errors.New("gatekit: invalid pattern")

	// ErrDuplicatePattern is returned when a template is registered twice.
	ErrDuplicatePattern = errors.New("gatekit: pattern already registered")

	// ErrPatternNotRegistered is returned when a token targets a path that is
	// not a registered protected pattern.
	ErrPatternNotRegistered = errors.New("gatekit: pattern not registered")

	// ErrStoreUnavailable is returned when the token store cannot answer.
	// Requests hitting this error are never granted.
	ErrStoreUnavailable = errors.New("gatekit: token store unavailable")
)

// DenyReason is the coarse, externally visible reason for a denial.
type DenyReason string

const (
	DenyNoToken      DenyReason = "no_token"
	DenyInvalidToken DenyReason = "invalid_token"
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err     error      // Underlying sentinel error
	Message string     // Additional context
	Path    string     // Protected pattern template involved
	Reason  DenyReason // Denial reason (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithPath adds the protected pattern template to the error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithReason adds the denial reason to the error.
func (e *Error) WithReason(reason DenyReason) *Error {
	e.Reason = reason
	return e
}

// IsDenied checks if an error represents a denial (either reason).
func IsDenied(err error) bool {
	return errors.Is(err, ErrNoToken) || errors.Is(err, ErrInvalidToken)
}

// IsInvalidToken checks if an error is a token rejection.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// IsStoreUnavailable checks if an error is a storage failure. Callers must
// treat this as fatal for the request, never as a grant.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsInvalidPattern checks if an error is due to an unparsable template.
func IsInvalidPattern(err error) bool {
	return errors.Is(err, ErrInvalidPattern)
}
