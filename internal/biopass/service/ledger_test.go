package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/memory"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

// ── Scenario ─────────────────────────────────────────────────────────────────

func TestRecordCheckIn_RegisterThenTwiceSameDay(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	tl.mustRegister(t, "REG1", 101)

	first, err := tl.ledger.RecordCheckIn(ctx, 101)
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if first.Outcome != service.OutcomeRecorded {
		t.Fatalf("expected Recorded, got %s", first.Outcome)
	}
	if first.Person.RegistrationCode != "REG1" {
		t.Errorf("expected person REG1, got %q", first.Person.RegistrationCode)
	}

	tl.clock.Set(time.Date(2026, 2, 15, 17, 30, 0, 0, time.UTC))
	second, err := tl.ledger.RecordCheckIn(ctx, 101)
	if err != nil {
		t.Fatalf("second check-in: %v", err)
	}
	if second.Outcome != service.OutcomeAlreadyRecorded {
		t.Fatalf("expected AlreadyRecorded, got %s", second.Outcome)
	}
	if second.Event.EventID != first.Event.EventID || !second.Event.RecordedAt.Equal(first.Event.RecordedAt) {
		t.Errorf("expected the first event %+v, got %+v", first.Event, second.Event)
	}

	_, events, err := tl.query.ListEventsForPerson(ctx, "REG1", store.TimeRange{})
	if err != nil {
		t.Fatalf("ListEventsForPerson: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(events))
	}
}

func TestRecordCheckIn_UnknownKeyCreatesNoEvent(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC))

	_, err := tl.ledger.RecordCheckIn(context.Background(), 999)
	if !errors.Is(err, service.ErrUnknownIdentity) {
		t.Fatalf("expected ErrUnknownIdentity, got %v", err)
	}
	if n := len(tl.store.Events()); n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
}

func TestRecordCheckIn_NonPositiveKeyIsInvalid(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Now())

	_, err := tl.ledger.RecordCheckIn(context.Background(), 0)
	if !errors.Is(err, service.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// ── Day boundary ─────────────────────────────────────────────────────────────

func TestRecordCheckIn_DayBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	tl := newTestLedger(t, loc, time.Date(2026, 2, 15, 23, 59, 59, 999_000_000, loc))
	ctx := context.Background()
	tl.mustRegister(t, "REG1", 101)

	late, err := tl.ledger.RecordCheckIn(ctx, 101)
	if err != nil {
		t.Fatalf("late check-in: %v", err)
	}

	tl.clock.Set(time.Date(2026, 2, 16, 0, 0, 0, 0, loc))
	early, err := tl.ledger.RecordCheckIn(ctx, 101)
	if err != nil {
		t.Fatalf("early check-in: %v", err)
	}

	if late.Outcome != service.OutcomeRecorded || early.Outcome != service.OutcomeRecorded {
		t.Fatalf("expected two Recorded outcomes, got %s and %s", late.Outcome, early.Outcome)
	}
	if late.Event.EventID == early.Event.EventID {
		t.Error("expected distinct events")
	}
	if late.Event.Day != "2026-02-15" || early.Event.Day != "2026-02-16" {
		t.Errorf("unexpected days %q, %q", late.Event.Day, early.Event.Day)
	}
}

func TestRecordCheckIn_SubMillisecondTruncated(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Date(2026, 2, 15, 9, 0, 0, 123_456_789, time.UTC))
	tl.mustRegister(t, "REG1", 101)

	res, err := tl.ledger.RecordCheckIn(context.Background(), 101)
	if err != nil {
		t.Fatalf("RecordCheckIn: %v", err)
	}
	want := time.Date(2026, 2, 15, 9, 0, 0, 123_000_000, time.UTC)
	if !res.Event.RecordedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, res.Event.RecordedAt)
	}
}

// ── Concurrency ──────────────────────────────────────────────────────────────

func TestRecordCheckIn_ConcurrentSameKey(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC))
	tl.mustRegister(t, "REG1", 101)

	const n = 50
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		mu      sync.Mutex
		results = make(map[service.Outcome]int)
		ids     = make(map[int64]struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := tl.ledger.RecordCheckIn(context.Background(), 101)
			if err != nil {
				t.Errorf("RecordCheckIn: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			results[res.Outcome]++
			ids[res.Event.EventID] = struct{}{}
		}()
	}
	close(start)
	wg.Wait()

	if results[service.OutcomeRecorded] != 1 {
		t.Errorf("expected 1 Recorded, got %d", results[service.OutcomeRecorded])
	}
	if results[service.OutcomeAlreadyRecorded] != n-1 {
		t.Errorf("expected %d AlreadyRecorded, got %d", n-1, results[service.OutcomeAlreadyRecorded])
	}
	if len(ids) != 1 {
		t.Errorf("expected one event id across callers, got %d", len(ids))
	}
	if got := len(tl.store.Events()); got != 1 {
		t.Errorf("expected 1 stored event, got %d", got)
	}
}

// ── Notifications ────────────────────────────────────────────────────────────

func TestRecordCheckIn_NotifiesOnlyWhenRecorded(t *testing.T) {
	tl := newTestLedger(t, time.UTC, time.Date(2026, 2, 15, 9, 5, 0, 0, time.UTC))
	ctx := context.Background()
	tl.mustRegister(t, "REG1", 101)

	for i := 0; i < 3; i++ {
		if _, err := tl.ledger.RecordCheckIn(ctx, 101); err != nil {
			t.Fatalf("RecordCheckIn: %v", err)
		}
	}

	notes := tl.notes.All()
	if len(notes) != 2 {
		t.Fatalf("expected registration + one check-in notification, got %d", len(notes))
	}
	checkIn := notes[1]
	if checkIn.Kind != service.NotificationCheckedIn {
		t.Errorf("expected kind checked_in, got %q", checkIn.Kind)
	}
	if checkIn.Phone != "+9876543210" {
		t.Errorf("expected normalised phone, got %q", checkIn.Phone)
	}
	if checkIn.Message != "Attendance marked for Student REG1 at 2026-02-15 09:05." {
		t.Errorf("unexpected message %q", checkIn.Message)
	}
	if checkIn.EventID == 0 {
		t.Error("expected event id on check-in notification")
	}
}

// ── Store failures ───────────────────────────────────────────────────────────

// brokenEvents fails every attendance write.
type brokenEvents struct {
	store.AttendanceStore
}

func (brokenEvents) InsertIfAbsent(context.Context, store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	return store.AttendanceRecord{}, false, errors.New("disk I/O error")
}

func TestRecordCheckIn_StoreFailureIsUnavailable(t *testing.T) {
	st := memory.New()
	reg, err := service.NewIdentityRegistry(st, nil, service.RegistryConfig{}, observability.Discard())
	if err != nil {
		t.Fatalf("NewIdentityRegistry: %v", err)
	}
	if _, err := reg.Register(context.Background(), studentInput("REG1", 101)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	notes := &recordingNotifier{}
	ledger := service.NewLedger(reg, brokenEvents{st}, notes, service.LedgerConfig{}, observability.Discard())

	_, err = ledger.RecordCheckIn(context.Background(), 101)
	if !errors.Is(err, service.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if len(notes.All()) != 0 {
		t.Error("expected no notification on failure")
	}
}
