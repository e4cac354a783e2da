package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	dbpkg "github.com/BrandonDHaskell/Biopass/server/internal/db"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

// Store implements store.PersonStore and store.AttendanceStore on SQLite.
// Reads use db directly; every write goes through the single writer.
type Store struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func New(db *sql.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which persons column it hit.
func uniqueViolation(err error) (field string, ok bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, "persons.registration_code"):
		return store.FieldRegistrationCode, true
	case strings.Contains(msg, "persons.biometric_key"):
		return store.FieldBiometricKey, true
	}
	return "", true
}

func ceilMillis(t time.Time) int64 {
	return store.CeilMillisecond(t).UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// rangeClause renders r as a WHERE fragment over column.
func rangeClause(column string, r store.TimeRange) (string, []any) {
	var (
		parts []string
		args  []any
	)
	if !r.From.IsZero() {
		parts = append(parts, column+" >= ?")
		args = append(args, ceilMillis(r.From))
	}
	if !r.To.IsZero() {
		parts = append(parts, column+" < ?")
		args = append(args, ceilMillis(r.To))
	}
	return strings.Join(parts, " AND "), args
}
