package service

import (
	"context"
	"fmt"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// QueryEngine answers the read side: range scans, per-person history and the
// roster.  It never writes.
type QueryEngine struct {
	registry *IdentityRegistry
	persons  store.PersonStore
	events   store.AttendanceStore
}

func NewQueryEngine(reg *IdentityRegistry, ps store.PersonStore, es store.AttendanceStore) *QueryEngine {
	return &QueryEngine{registry: reg, persons: ps, events: es}
}

func checkRange(r store.TimeRange) error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.From.Before(r.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidRange, r.From, r.To)
	}
	return nil
}

// ListEvents returns events in [From, To) ordered by RecordedAt then EventID,
// each joined to its person.
func (q *QueryEngine) ListEvents(ctx context.Context, r store.TimeRange) ([]store.AttendanceWithPerson, error) {
	if err := checkRange(r); err != nil {
		return nil, err
	}
	rows, err := q.events.ListEvents(ctx, r)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	if rows == nil {
		rows = []store.AttendanceWithPerson{}
	}
	return rows, nil
}

// ListEventsForPerson resolves code and returns that person's events in r,
// newest first.
func (q *QueryEngine) ListEventsForPerson(ctx context.Context, code string, r store.TimeRange) (store.PersonRecord, []store.AttendanceRecord, error) {
	if err := checkRange(r); err != nil {
		return store.PersonRecord{}, nil, err
	}
	person, err := q.registry.LookupByRegistrationCode(ctx, code)
	if err != nil {
		return store.PersonRecord{}, nil, err
	}
	events, err := q.events.ListEventsForPerson(ctx, person.PersonID, r)
	if err != nil {
		return store.PersonRecord{}, nil, unavailable("list person events", err)
	}
	if events == nil {
		events = []store.AttendanceRecord{}
	}
	return person, events, nil
}

// ListAllPersons returns every enrolled person ordered by enrolment.
func (q *QueryEngine) ListAllPersons(ctx context.Context) ([]store.PersonRecord, error) {
	persons, err := q.persons.ListPersons(ctx)
	if err != nil {
		return nil, unavailable("list persons", err)
	}
	if persons == nil {
		persons = []store.PersonRecord{}
	}
	return persons, nil
}
