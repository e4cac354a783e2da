package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// InsertIfAbsent relies on the (person_id, day) UNIQUE constraint: the insert
// is a no-op on conflict and the existing row is read back in the same
// transaction.
func (s *Store) InsertIfAbsent(ctx context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	var (
		out      store.AttendanceRecord
		inserted bool
	)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM persons WHERE person_id = ?;`, rec.PersonID,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("InsertIfAbsent person %s: %w", rec.PersonID, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("InsertIfAbsent resolve person: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO attendance_events(person_id, day, recorded_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(person_id, day) DO NOTHING;
`, rec.PersonID, rec.Day, rec.RecordedAt.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("InsertIfAbsent insert: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("InsertIfAbsent rows affected: %w", err)
		}
		if n == 1 {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("InsertIfAbsent last insert id: %w", err)
			}
			out = rec
			out.EventID = id
			out.RecordedAt = fromMillis(rec.RecordedAt.UTC().UnixMilli())
			inserted = true
			return nil
		}

		var recordedMs int64
		if err := tx.QueryRowContext(ctx, `
SELECT event_id, person_id, day, recorded_at_ms
FROM attendance_events
WHERE person_id = ? AND day = ?;
`, rec.PersonID, rec.Day).Scan(&out.EventID, &out.PersonID, &out.Day, &recordedMs); err != nil {
			return fmt.Errorf("InsertIfAbsent read existing: %w", err)
		}
		out.RecordedAt = fromMillis(recordedMs)
		return nil
	})
	if err != nil {
		return store.AttendanceRecord{}, false, err
	}
	return out, inserted, nil
}

func (s *Store) ListEvents(ctx context.Context, r store.TimeRange) ([]store.AttendanceWithPerson, error) {
	q := `
SELECT e.event_id, e.person_id, e.day, e.recorded_at_ms,
       p.person_id, p.name, p.registration_code, p.phone, p.email, p.biometric_key, p.enrolled_at_ms
FROM attendance_events e
JOIN persons p ON p.person_id = e.person_id`
	where, args := rangeClause("e.recorded_at_ms", r)
	if where != "" {
		q += "\nWHERE " + where
	}
	q += "\nORDER BY e.recorded_at_ms ASC, e.event_id ASC;"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	out := []store.AttendanceWithPerson{}
	for rows.Next() {
		var (
			row                    store.AttendanceWithPerson
			recordedMs, enrolledMs int64
		)
		if err := rows.Scan(
			&row.Event.EventID, &row.Event.PersonID, &row.Event.Day, &recordedMs,
			&row.Person.PersonID, &row.Person.Name, &row.Person.RegistrationCode,
			&row.Person.Phone, &row.Person.Email, &row.Person.BiometricKey, &enrolledMs,
		); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		row.Event.RecordedAt = fromMillis(recordedMs)
		row.Person.EnrolledAt = fromMillis(enrolledMs)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEvents rows: %w", err)
	}
	return out, nil
}

func (s *Store) ListEventsForPerson(ctx context.Context, personID string, r store.TimeRange) ([]store.AttendanceRecord, error) {
	q := `
SELECT event_id, person_id, day, recorded_at_ms
FROM attendance_events
WHERE person_id = ?`
	args := []any{personID}
	if where, rargs := rangeClause("recorded_at_ms", r); where != "" {
		q += " AND " + where
		args = append(args, rargs...)
	}
	q += "\nORDER BY recorded_at_ms DESC, event_id DESC;"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEventsForPerson query: %w", err)
	}
	defer rows.Close()

	out := []store.AttendanceRecord{}
	for rows.Next() {
		var (
			ev         store.AttendanceRecord
			recordedMs int64
		)
		if err := rows.Scan(&ev.EventID, &ev.PersonID, &ev.Day, &recordedMs); err != nil {
			return nil, fmt.Errorf("ListEventsForPerson scan: %w", err)
		}
		ev.RecordedAt = fromMillis(recordedMs)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEventsForPerson rows: %w", err)
	}
	return out, nil
}
