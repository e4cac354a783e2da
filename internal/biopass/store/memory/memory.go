package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// Store is an in-memory registry and attendance log.  A single mutex guards
// both so that uniqueness checks and inserts are atomic, and so joins see a
// consistent snapshot.  It is intended for tests and dev environments.
type Store struct {
	mu sync.RWMutex

	persons  map[string]store.PersonRecord
	byKey    map[int64]string
	byCode   map[string]string
	enrolled []string // person ids in insertion order

	events []store.AttendanceRecord
	byDay  map[dayKey]int // index into events
	nextID int64
}

type dayKey struct {
	personID string
	day      string
}

func New() *Store {
	return &Store{
		persons: make(map[string]store.PersonRecord),
		byKey:   make(map[int64]string),
		byCode:  make(map[string]string),
		byDay:   make(map[dayKey]int),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }
