package sqlite_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	sqlitestore "github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════
// InsertIfAbsent: one row per person per day
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_InsertIfAbsent_SecondCallReturnsExisting(t *testing.T) {
	conn := openTestDB(t)
	st := sqlitestore.New(conn, newTestWriter(t, conn))
	ctx := context.Background()
	if err := st.CreatePerson(ctx, testPerson("p1", "REG1", 101)); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	now := time.Date(2026, 2, 15, 9, 30, 0, 0, time.UTC)

	first, inserted, err := st.InsertIfAbsent(ctx, store.AttendanceRecord{
		PersonID: "p1", Day: "2026-02-15", RecordedAt: now,
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to happen")
	}
	if first.EventID == 0 {
		t.Error("expected event_id to be assigned")
	}

	second, inserted, err := st.InsertIfAbsent(ctx, store.AttendanceRecord{
		PersonID: "p1", Day: "2026-02-15", RecordedAt: now.Add(3 * time.Hour),
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("expected second insert on the same day to be a no-op")
	}
	if second != first {
		t.Errorf("expected existing event %+v, got %+v", first, second)
	}

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_events`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestStore_InsertIfAbsent_NextDayInserts(t *testing.T) {
	conn := openTestDB(t)
	st := sqlitestore.New(conn, newTestWriter(t, conn))
	ctx := context.Background()
	if err := st.CreatePerson(ctx, testPerson("p1", "REG1", 101)); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	late := time.Date(2026, 2, 15, 23, 59, 59, 999_000_000, time.UTC)
	early := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)

	a, okA, err := st.InsertIfAbsent(ctx, store.AttendanceRecord{PersonID: "p1", Day: "2026-02-15", RecordedAt: late})
	if err != nil || !okA {
		t.Fatalf("insert late: inserted=%v err=%v", okA, err)
	}
	b, okB, err := st.InsertIfAbsent(ctx, store.AttendanceRecord{PersonID: "p1", Day: "2026-02-16", RecordedAt: early})
	if err != nil || !okB {
		t.Fatalf("insert early: inserted=%v err=%v", okB, err)
	}
	if a.EventID >= b.EventID {
		t.Errorf("expected increasing event ids, got %d then %d", a.EventID, b.EventID)
	}
	if !a.RecordedAt.Equal(late) {
		t.Errorf("expected millisecond timestamp preserved, got %v", a.RecordedAt)
	}
}

func TestStore_InsertIfAbsent_UnknownPerson(t *testing.T) {
	conn := openTestDB(t)
	st := sqlitestore.New(conn, newTestWriter(t, conn))

	_, _, err := st.InsertIfAbsent(context.Background(), store.AttendanceRecord{
		PersonID: "ghost", Day: "2026-02-15", RecordedAt: time.Now().UTC(),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_InsertIfAbsent_Concurrent(t *testing.T) {
	conn := openTestDB(t)
	st := sqlitestore.New(conn, newTestWriter(t, conn))
	ctx := context.Background()
	if err := st.CreatePerson(ctx, testPerson("p1", "REG1", 101)); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}

	const n = 20
	now := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		ids      = map[int64]struct{}{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev, ok, err := st.InsertIfAbsent(ctx, store.AttendanceRecord{
				PersonID: "p1", Day: "2026-02-15", RecordedAt: now.Add(time.Duration(i) * time.Millisecond),
			})
			if err != nil {
				t.Errorf("insert %d: %v", i, err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				inserted++
			}
			ids[ev.EventID] = struct{}{}
		}(i)
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("expected exactly 1 insert, got %d", inserted)
	}
	if len(ids) != 1 {
		t.Errorf("expected every caller to see the same event, got %d distinct ids", len(ids))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ListEvents / ListEventsForPerson
// ═══════════════════════════════════════════════════════════════════════════

func TestStore_ListEvents_HalfOpenRange(t *testing.T) {
	conn := openTestDB(t)
	st := sqlitestore.New(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for _, p := range []store.PersonRecord{testPerson("p1", "REG1", 101), testPerson("p2", "REG2", 102)} {
		if err := st.CreatePerson(ctx, p); err != nil {
			t.Fatalf("CreatePerson: %v", err)
		}
	}

	base := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	seed := []store.AttendanceRecord{
		{PersonID: "p1", Day: "2026-02-15", RecordedAt: base},                      // on From: included
		{PersonID: "p2", Day: "2026-02-15", RecordedAt: base.Add(12 * time.Hour)}, // inside
		{PersonID: "p1", Day: "2026-02-16", RecordedAt: base.Add(24 * time.Hour)}, // on To: excluded
	}
	for _, rec := range seed {
		if _, _, err := st.InsertIfAbsent(ctx, rec); err != nil {
			t.Fatalf("InsertIfAbsent: %v", err)
		}
	}

	got, err := st.ListEvents(ctx, store.TimeRange{From: base, To: base.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events in range, got %d", len(got))
	}
	if got[0].Person.PersonID != "p1" || got[1].Person.PersonID != "p2" {
		t.Errorf("unexpected order: %s, %s", got[0].Person.PersonID, got[1].Person.PersonID)
	}
	if got[1].Person.Name != "Student p2" {
		t.Errorf("expected joined person name, got %q", got[1].Person.Name)
	}

	all, err := st.ListEvents(ctx, store.TimeRange{})
	if err != nil {
		t.Fatalf("ListEvents all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 events unbounded, got %d", len(all))
	}

	mine, err := st.ListEventsForPerson(ctx, "p1", store.TimeRange{})
	if err != nil {
		t.Fatalf("ListEventsForPerson: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 events for p1, got %d", len(mine))
	}
	if !mine[0].RecordedAt.After(mine[1].RecordedAt) {
		t.Error("expected newest first")
	}

	fromOnly, err := st.ListEventsForPerson(ctx, "p1", store.TimeRange{From: base.Add(time.Nanosecond)})
	if err != nil {
		t.Fatalf("ListEventsForPerson from-only: %v", err)
	}
	if len(fromOnly) != 1 {
		t.Errorf("expected sub-millisecond From to exclude the event at base, got %d", len(fromOnly))
	}
}
