package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

const personColumns = `person_id, name, registration_code, phone, email, biometric_key, enrolled_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (store.PersonRecord, error) {
	var (
		p          store.PersonRecord
		enrolledMs int64
	)
	if err := row.Scan(&p.PersonID, &p.Name, &p.RegistrationCode, &p.Phone, &p.Email, &p.BiometricKey, &enrolledMs); err != nil {
		return store.PersonRecord{}, err
	}
	p.EnrolledAt = fromMillis(enrolledMs)
	return p, nil
}

// CreatePerson checks both unique columns and inserts inside one writer
// transaction.  The table's UNIQUE constraints back the check up.
func (s *Store) CreatePerson(ctx context.Context, rec store.PersonRecord) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM persons WHERE registration_code = ?;`, rec.RegistrationCode,
		).Scan(&one)
		if err == nil {
			return &store.ConflictError{Field: store.FieldRegistrationCode}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("CreatePerson check registration_code: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`SELECT 1 FROM persons WHERE biometric_key = ?;`, rec.BiometricKey,
		).Scan(&one)
		if err == nil {
			return &store.ConflictError{Field: store.FieldBiometricKey}
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("CreatePerson check biometric_key: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO persons(`+personColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.PersonID, rec.Name, rec.RegistrationCode, rec.Phone, rec.Email,
			rec.BiometricKey, rec.EnrolledAt.UTC().UnixMilli(),
		); err != nil {
			if field, ok := uniqueViolation(err); ok && field != "" {
				return &store.ConflictError{Field: field}
			}
			return fmt.Errorf("CreatePerson insert: %w", err)
		}
		return nil
	})
}

func (s *Store) PersonByBiometricKey(ctx context.Context, key int64) (store.PersonRecord, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE biometric_key = ?;`, key))
	if err == sql.ErrNoRows {
		return store.PersonRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.PersonRecord{}, fmt.Errorf("PersonByBiometricKey: %w", err)
	}
	return p, nil
}

func (s *Store) PersonByRegistrationCode(ctx context.Context, code string) (store.PersonRecord, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE registration_code = ?;`, code))
	if err == sql.ErrNoRows {
		return store.PersonRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.PersonRecord{}, fmt.Errorf("PersonByRegistrationCode: %w", err)
	}
	return p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]store.PersonRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons ORDER BY enrolled_at_ms ASC, person_id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("ListPersons query: %w", err)
	}
	defer rows.Close()

	out := []store.PersonRecord{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("ListPersons scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPersons rows: %w", err)
	}
	return out, nil
}
