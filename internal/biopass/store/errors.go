package store

import "errors"

// Sentinel errors shared by every store implementation.  Services translate
// these into their own error kinds.
var (
	ErrNotFound    = errors.New("record not found")
	ErrConflict    = errors.New("unique constraint conflict")
	ErrUnavailable = errors.New("store unavailable")
)

const (
	FieldRegistrationCode = "registration_code"
	FieldBiometricKey     = "biometric_key"
)

// ConflictError names the unique field a write collided on.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return "unique constraint conflict on " + e.Field
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
