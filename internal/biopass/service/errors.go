package service

import (
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownIdentity   = errors.New("unknown identity")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidRange      = errors.New("invalid time range")
)

// DuplicateIdentityError names the unique field a registration collided on:
// store.FieldRegistrationCode or store.FieldBiometricKey.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("duplicate identity: %s already registered", e.Field)
}

func (e *DuplicateIdentityError) Is(target error) bool { return target == ErrDuplicateIdentity }

// unavailable wraps a store failure that is neither NotFound nor Conflict.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

// translate maps store sentinels onto service errors.
func translate(op string, err error) error {
	var ce *store.ConflictError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return &DuplicateIdentityError{Field: ce.Field}
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrUnknownIdentity)
	default:
		return unavailable(op, err)
	}
}
