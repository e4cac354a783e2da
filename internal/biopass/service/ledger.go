package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

type Outcome int

const (
	OutcomeRecorded Outcome = iota + 1
	OutcomeAlreadyRecorded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeAlreadyRecorded:
		return "already_recorded"
	}
	return "unspecified"
}

// CheckInResult carries the person and the day's event.  For
// OutcomeAlreadyRecorded the event is the one recorded earlier that day.
type CheckInResult struct {
	Outcome Outcome
	Person  store.PersonRecord
	Event   store.AttendanceRecord
}

// Ledger records at most one attendance event per person per calendar day.
type Ledger struct {
	registry *IdentityRegistry
	events   store.AttendanceStore
	calendar Calendar
	notifier Notifier
	now      func() time.Time
	logger   *slog.Logger
}

type LedgerConfig struct {
	Calendar Calendar

	// Now overrides the wall clock.
	Now func() time.Time
}

func NewLedger(reg *IdentityRegistry, es store.AttendanceStore, n Notifier, cfg LedgerConfig, logger *slog.Logger) *Ledger {
	if cfg.Calendar.loc == nil {
		cfg.Calendar = NewCalendar(time.UTC)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if n == nil {
		n = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		registry: reg,
		events:   es,
		calendar: cfg.Calendar,
		notifier: n,
		now:      cfg.Now,
		logger:   logger,
	}
}

func (l *Ledger) Calendar() Calendar { return l.calendar }

// RecordCheckIn resolves key and records today's event for that person, or
// returns the event already recorded today.  Concurrent calls for the same
// person and day resolve to exactly one Recorded outcome.  A non-positive key
// can never be enrolled, so it is rejected with ErrInvalidInput rather than
// ErrUnknownIdentity.
func (l *Ledger) RecordCheckIn(ctx context.Context, key int64) (CheckInResult, error) {
	person, err := l.registry.LookupByBiometricKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrUnknownIdentity) {
			observability.CheckIns.WithLabelValues("unknown").Inc()
		} else {
			observability.CheckIns.WithLabelValues("error").Inc()
		}
		return CheckInResult{}, err
	}

	// Millisecond precision is what every store persists.
	now := l.now().UTC().Truncate(time.Millisecond)

	ev, inserted, err := l.events.InsertIfAbsent(ctx, store.AttendanceRecord{
		PersonID:   person.PersonID,
		Day:        l.calendar.DayOf(now),
		RecordedAt: now,
	})
	if err != nil {
		observability.CheckIns.WithLabelValues("error").Inc()
		err = translate("record check-in", err)
		l.logger.Error("record check-in failed", "person_id", person.PersonID, "error", err)
		return CheckInResult{}, err
	}

	res := CheckInResult{Outcome: OutcomeAlreadyRecorded, Person: person, Event: ev}
	if inserted {
		res.Outcome = OutcomeRecorded
		l.notifier.Notify(ctx, checkedInNotification(person, ev, l.calendar.Location()))
	}

	observability.CheckIns.WithLabelValues(res.Outcome.String()).Inc()
	l.logger.Info("check-in",
		"outcome", res.Outcome.String(),
		"person_id", person.PersonID,
		"event_id", ev.EventID,
		"day", ev.Day,
	)
	return res, nil
}
