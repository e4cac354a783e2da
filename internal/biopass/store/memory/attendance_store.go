package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

func (s *Store) InsertIfAbsent(_ context.Context, rec store.AttendanceRecord) (store.AttendanceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[rec.PersonID]; !ok {
		return store.AttendanceRecord{}, false, fmt.Errorf("InsertIfAbsent person %s: %w", rec.PersonID, store.ErrNotFound)
	}

	k := dayKey{personID: rec.PersonID, day: rec.Day}
	if i, ok := s.byDay[k]; ok {
		return s.events[i], false, nil
	}

	s.nextID++
	rec.EventID = s.nextID
	s.events = append(s.events, rec)
	s.byDay[k] = len(s.events) - 1
	return rec, true, nil
}

func (s *Store) ListEvents(_ context.Context, r store.TimeRange) ([]store.AttendanceWithPerson, error) {
	s.mu.RLock()
	var out []store.AttendanceWithPerson
	for _, ev := range s.events {
		if !r.Contains(ev.RecordedAt) {
			continue
		}
		out = append(out, store.AttendanceWithPerson{Event: ev, Person: s.persons[ev.PersonID]})
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Event, out[j].Event
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.EventID < b.EventID
	})
	return out, nil
}

func (s *Store) ListEventsForPerson(_ context.Context, personID string, r store.TimeRange) ([]store.AttendanceRecord, error) {
	s.mu.RLock()
	var out []store.AttendanceRecord
	for _, ev := range s.events {
		if ev.PersonID == personID && r.Contains(ev.RecordedAt) {
			out = append(out, ev)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].EventID > out[j].EventID
	})
	return out, nil
}

// Events returns a copy of all recorded events in insertion order.  Test-only helper.
func (s *Store) Events() []store.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AttendanceRecord, len(s.events))
	copy(out, s.events)
	return out
}
