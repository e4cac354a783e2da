package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// InsertIfAbsent inserts with ON CONFLICT DO NOTHING.  No returned row means
// the (person_id, day) slot was already taken, possibly by a concurrent
// transaction that Postgres waited on, so the committed row is read back.
func (s *Store) InsertIfAbsent(ctx context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	out := rec
	err := s.pool.QueryRow(ctx, `
INSERT INTO attendance_events (person_id, day, recorded_at)
VALUES ($1, $2, $3)
ON CONFLICT (person_id, day) DO NOTHING
RETURNING event_id, recorded_at`,
		rec.PersonID, rec.Day, rec.RecordedAt.UTC(),
	).Scan(&out.EventID, &out.RecordedAt)
	switch {
	case err == nil:
		out.RecordedAt = out.RecordedAt.UTC()
		return out, true, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		if pgErr, ok := pgErrorCode(err); ok && pgErr.Code == codeForeignKeyViolation {
			return store.AttendanceRecord{}, false, fmt.Errorf("insert attendance person %s: %w", rec.PersonID, store.ErrNotFound)
		}
		return store.AttendanceRecord{}, false, fmt.Errorf("insert attendance: %w", err)
	}

	var existing store.AttendanceRecord
	if err := s.pool.QueryRow(ctx, `
SELECT event_id, person_id, day, recorded_at
FROM attendance_events
WHERE person_id = $1 AND day = $2`,
		rec.PersonID, rec.Day,
	).Scan(&existing.EventID, &existing.PersonID, &existing.Day, &existing.RecordedAt); err != nil {
		return store.AttendanceRecord{}, false, fmt.Errorf("read existing attendance: %w", err)
	}
	existing.RecordedAt = existing.RecordedAt.UTC()
	return existing, false, nil
}

func (s *Store) ListEvents(ctx context.Context, r store.TimeRange) ([]store.AttendanceWithPerson, error) {
	where, args := rangeArgs("e.recorded_at", r, 1)
	rows, err := s.pool.Query(ctx, `
SELECT e.event_id, e.person_id, e.day, e.recorded_at,
       p.person_id, p.name, p.registration_code, p.phone, p.email, p.biometric_key, p.enrolled_at
FROM attendance_events e
JOIN persons p ON p.person_id = e.person_id
WHERE TRUE`+where+`
ORDER BY e.recorded_at ASC, e.event_id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []store.AttendanceWithPerson{}
	for rows.Next() {
		var row store.AttendanceWithPerson
		if err := rows.Scan(
			&row.Event.EventID, &row.Event.PersonID, &row.Event.Day, &row.Event.RecordedAt,
			&row.Person.PersonID, &row.Person.Name, &row.Person.RegistrationCode,
			&row.Person.Phone, &row.Person.Email, &row.Person.BiometricKey, &row.Person.EnrolledAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		row.Event.RecordedAt = row.Event.RecordedAt.UTC()
		row.Person.EnrolledAt = row.Person.EnrolledAt.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events rows: %w", err)
	}
	return out, nil
}

func (s *Store) ListEventsForPerson(ctx context.Context, personID string, r store.TimeRange) ([]store.AttendanceRecord, error) {
	where, rargs := rangeArgs("recorded_at", r, 2)
	args := append([]any{personID}, rargs...)
	rows, err := s.pool.Query(ctx, `
SELECT event_id, person_id, day, recorded_at
FROM attendance_events
WHERE person_id = $1`+where+`
ORDER BY recorded_at DESC, event_id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list person events: %w", err)
	}
	defer rows.Close()

	out := []store.AttendanceRecord{}
	for rows.Next() {
		var ev store.AttendanceRecord
		if err := rows.Scan(&ev.EventID, &ev.PersonID, &ev.Day, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan person event: %w", err)
		}
		ev.RecordedAt = ev.RecordedAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list person events rows: %w", err)
	}
	return out, nil
}
