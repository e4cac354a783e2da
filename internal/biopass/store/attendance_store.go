package store

import (
	"context"
	"time"
)

// AttendanceRecord is a single check-in.  Day is the calendar day of
// RecordedAt in the ledger's configured time zone, formatted YYYY-MM-DD; the
// store enforces uniqueness on (PersonID, Day).
type AttendanceRecord struct {
	EventID    int64
	PersonID   string
	Day        string
	RecordedAt time.Time
}

// AttendanceWithPerson joins an event to the person it belongs to.
type AttendanceWithPerson struct {
	Event  AttendanceRecord
	Person PersonRecord
}

// AttendanceStore persists check-ins as an append-only log.
type AttendanceStore interface {
	// InsertIfAbsent records rec unless an event for (rec.PersonID, rec.Day)
	// already exists.  It returns the stored event (the new one, or the one
	// that was already there) and whether an insert happened.  The existence
	// check and the insert are atomic.  An unknown PersonID returns ErrNotFound.
	InsertIfAbsent(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, bool, error)

	// ListEvents returns events with RecordedAt in r, ordered by RecordedAt
	// then EventID ascending.
	ListEvents(ctx context.Context, r TimeRange) ([]AttendanceWithPerson, error)

	// ListEventsForPerson returns one person's events in r, newest first.
	ListEventsForPerson(ctx context.Context, personID string, r TimeRange) ([]AttendanceRecord, error)
}
