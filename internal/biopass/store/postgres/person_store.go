package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

const personColumns = `person_id, name, registration_code, phone, email, biometric_key, enrolled_at`

func scanPerson(row pgx.Row) (store.PersonRecord, error) {
	var p store.PersonRecord
	if err := row.Scan(&p.PersonID, &p.Name, &p.RegistrationCode, &p.Phone, &p.Email, &p.BiometricKey, &p.EnrolledAt); err != nil {
		return store.PersonRecord{}, err
	}
	p.EnrolledAt = p.EnrolledAt.UTC()
	return p, nil
}

// CreatePerson leans on the named UNIQUE constraints; the violated
// constraint tells which field collided.
func (s *Store) CreatePerson(ctx context.Context, rec store.PersonRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO persons (`+personColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.PersonID, rec.Name, rec.RegistrationCode, rec.Phone, rec.Email, rec.BiometricKey, rec.EnrolledAt.UTC(),
	)
	if err == nil {
		return nil
	}
	if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == codeUniqueViolation {
		if field := conflictField(pgErr.ConstraintName); field != "" {
			return &store.ConflictError{Field: field}
		}
	}
	return fmt.Errorf("create person: %w", err)
}

func (s *Store) PersonByBiometricKey(ctx context.Context, key int64) (store.PersonRecord, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE biometric_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.PersonRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.PersonRecord{}, fmt.Errorf("person by biometric key: %w", err)
	}
	return p, nil
}

func (s *Store) PersonByRegistrationCode(ctx context.Context, code string) (store.PersonRecord, error) {
	p, err := scanPerson(s.pool.QueryRow(ctx,
		`SELECT `+personColumns+` FROM persons WHERE registration_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.PersonRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.PersonRecord{}, fmt.Errorf("person by registration code: %w", err)
	}
	return p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]store.PersonRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+personColumns+` FROM persons ORDER BY enrolled_at ASC, person_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	out := []store.PersonRecord{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list persons rows: %w", err)
	}
	return out, nil
}
