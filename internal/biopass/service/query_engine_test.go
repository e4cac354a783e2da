package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// seedWeek registers REG1/REG2 and checks both in on consecutive days:
// REG1 on the 1st and 3rd, REG2 on the 2nd.
func seedWeek(t *testing.T) (*testLedger, time.Time) {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tl := newTestLedger(t, time.UTC, base)
	tl.mustRegister(t, "REG1", 101)
	tl.clock.Set(base.Add(time.Minute))
	tl.mustRegister(t, "REG2", 102)

	ctx := context.Background()
	for i, key := range []int64{101, 102, 101} {
		tl.clock.Set(base.AddDate(0, 0, i))
		if _, err := tl.ledger.RecordCheckIn(ctx, key); err != nil {
			t.Fatalf("RecordCheckIn(%d): %v", key, err)
		}
	}
	return tl, base
}

func TestListEvents_HalfOpenAndOrdered(t *testing.T) {
	tl, base := seedWeek(t)
	ctx := context.Background()

	all, err := tl.query.ListEvents(ctx, store.TimeRange{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Event.RecordedAt.Before(all[i-1].Event.RecordedAt) {
			t.Errorf("event %d out of ascending order", i)
		}
	}
	if all[1].Person.RegistrationCode != "REG2" {
		t.Errorf("expected REG2 second, got %s", all[1].Person.RegistrationCode)
	}

	// [base, base+2d) excludes the event exactly at base+2d.
	got, err := tl.query.ListEvents(ctx, store.TimeRange{From: base, To: base.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatalf("ListEvents bounded: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 events in [base, base+2d), got %d", len(got))
	}

	got, err = tl.query.ListEvents(ctx, store.TimeRange{From: base.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatalf("ListEvents from-only: %v", err)
	}
	if len(got) != 1 || got[0].Person.RegistrationCode != "REG1" {
		t.Errorf("expected only REG1 from base+2d, got %+v", got)
	}

	got, err = tl.query.ListEvents(ctx, store.TimeRange{To: base})
	if err != nil {
		t.Fatalf("ListEvents to-only: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", got)
	}
}

func TestListEvents_InvalidRange(t *testing.T) {
	tl, base := seedWeek(t)

	_, err := tl.query.ListEvents(context.Background(), store.TimeRange{From: base, To: base})
	if !errors.Is(err, service.ErrInvalidRange) {
		t.Errorf("From == To: expected ErrInvalidRange, got %v", err)
	}

	_, _, err = tl.query.ListEventsForPerson(context.Background(), "REG1", store.TimeRange{From: base, To: base.Add(-time.Hour)})
	if !errors.Is(err, service.ErrInvalidRange) {
		t.Errorf("From > To: expected ErrInvalidRange, got %v", err)
	}
}

func TestListEventsForPerson(t *testing.T) {
	tl, base := seedWeek(t)
	ctx := context.Background()

	p, events, err := tl.query.ListEventsForPerson(ctx, "REG1", store.TimeRange{})
	if err != nil {
		t.Fatalf("ListEventsForPerson: %v", err)
	}
	if p.Name != "Student REG1" {
		t.Errorf("expected Student REG1, got %q", p.Name)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].RecordedAt.Equal(base.AddDate(0, 0, 2)) || !events[1].RecordedAt.Equal(base) {
		t.Errorf("expected newest first, got %v then %v", events[0].RecordedAt, events[1].RecordedAt)
	}

	_, events, err = tl.query.ListEventsForPerson(ctx, "REG1", store.TimeRange{From: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("ListEventsForPerson from-only: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event after base+1h, got %d", len(events))
	}

	if _, _, err := tl.query.ListEventsForPerson(ctx, "NOPE", store.TimeRange{}); !errors.Is(err, service.ErrUnknownIdentity) {
		t.Errorf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestListAllPersons_EnrolmentOrder(t *testing.T) {
	tl, _ := seedWeek(t)

	persons, err := tl.query.ListAllPersons(context.Background())
	if err != nil {
		t.Fatalf("ListAllPersons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(persons))
	}
	if persons[0].RegistrationCode != "REG1" || persons[1].RegistrationCode != "REG2" {
		t.Errorf("unexpected order: %s, %s", persons[0].RegistrationCode, persons[1].RegistrationCode)
	}
}
