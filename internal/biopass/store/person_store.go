package store

import (
	"context"
	"time"
)

type PersonRecord struct {
	PersonID         string
	Name             string
	RegistrationCode string
	Phone            string
	Email            string
	BiometricKey     int64
	EnrolledAt       time.Time
}

// PersonStore holds the identity registry.  Persons are never deleted.
type PersonStore interface {
	// CreatePerson inserts rec unless another person already holds its
	// registration code or biometric key.  The uniqueness check and the insert
	// are one atomic step; a collision returns a *ConflictError naming the
	// field and leaves the store unchanged.
	CreatePerson(ctx context.Context, rec PersonRecord) error

	PersonByBiometricKey(ctx context.Context, key int64) (PersonRecord, error)
	PersonByRegistrationCode(ctx context.Context, code string) (PersonRecord, error)

	// ListPersons returns every person ordered by EnrolledAt, then PersonID.
	ListPersons(ctx context.Context) ([]PersonRecord, error)
}
