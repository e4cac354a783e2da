package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/memory"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n service.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) All() []service.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]service.Notification(nil), r.sent...)
}

// fakeClock is a settable clock safe for concurrent reads.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testLedger struct {
	store    *memory.Store
	registry *service.IdentityRegistry
	ledger   *service.Ledger
	query    *service.QueryEngine
	notes    *recordingNotifier
	clock    *fakeClock
}

// newTestLedger wires the services over a fresh memory store, a recording
// notifier and a fake clock in loc.
func newTestLedger(t *testing.T, loc *time.Location, start time.Time) *testLedger {
	t.Helper()

	st := memory.New()
	notes := &recordingNotifier{}
	clock := newFakeClock(start)

	reg, err := service.NewIdentityRegistry(st, notes, service.RegistryConfig{Now: clock.Now}, observability.Discard())
	if err != nil {
		t.Fatalf("NewIdentityRegistry: %v", err)
	}
	ledger := service.NewLedger(reg, st, notes, service.LedgerConfig{
		Calendar: service.NewCalendar(loc),
		Now:      clock.Now,
	}, observability.Discard())

	return &testLedger{
		store:    st,
		registry: reg,
		ledger:   ledger,
		query:    service.NewQueryEngine(reg, st, st),
		notes:    notes,
		clock:    clock,
	}
}

func studentInput(code string, key int64) service.PersonInput {
	return service.PersonInput{
		Name:             "Student " + code,
		RegistrationCode: code,
		Phone:            "9876543210",
		Email:            code + "@example.edu",
		BiometricKey:     key,
	}
}

func (tl *testLedger) mustRegister(t *testing.T, code string, key int64) {
	t.Helper()
	if _, err := tl.registry.Register(context.Background(), studentInput(code, key)); err != nil {
		t.Fatalf("Register(%s, %d): %v", code, key, err)
	}
}
