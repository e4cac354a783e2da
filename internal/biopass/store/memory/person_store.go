package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

func (s *Store) CreatePerson(_ context.Context, rec store.PersonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[rec.RegistrationCode]; ok {
		return &store.ConflictError{Field: store.FieldRegistrationCode}
	}
	if _, ok := s.byKey[rec.BiometricKey]; ok {
		return &store.ConflictError{Field: store.FieldBiometricKey}
	}
	if _, ok := s.persons[rec.PersonID]; ok {
		return fmt.Errorf("CreatePerson: duplicate person_id %s", rec.PersonID)
	}

	s.persons[rec.PersonID] = rec
	s.byCode[rec.RegistrationCode] = rec.PersonID
	s.byKey[rec.BiometricKey] = rec.PersonID
	s.enrolled = append(s.enrolled, rec.PersonID)
	return nil
}

func (s *Store) PersonByBiometricKey(_ context.Context, key int64) (store.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[key]
	if !ok {
		return store.PersonRecord{}, store.ErrNotFound
	}
	return s.persons[id], nil
}

func (s *Store) PersonByRegistrationCode(_ context.Context, code string) (store.PersonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return store.PersonRecord{}, store.ErrNotFound
	}
	return s.persons[id], nil
}

func (s *Store) ListPersons(_ context.Context) ([]store.PersonRecord, error) {
	s.mu.RLock()
	out := make([]store.PersonRecord, 0, len(s.enrolled))
	for _, id := range s.enrolled {
		out = append(out, s.persons[id])
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].EnrolledAt.Before(out[j].EnrolledAt)
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out, nil
}
