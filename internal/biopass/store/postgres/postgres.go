// Package postgres implements the person and attendance stores on
// PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
)

//go:embed schema.sql
var schema string

// Postgres SQLSTATE codes the store translates.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded schema.  Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

func pgErrorCode(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// conflictField maps a persons unique-constraint name to the store field.
func conflictField(constraint string) string {
	switch constraint {
	case "persons_registration_code_uq":
		return store.FieldRegistrationCode
	case "persons_biometric_key_uq":
		return store.FieldBiometricKey
	}
	return ""
}

// rangeArgs renders r as a WHERE fragment over column, numbering placeholders
// from next.  Bounds are rounded up to the millisecond before pgx truncates
// them to microseconds.
func rangeArgs(column string, r store.TimeRange, next int) (string, []any) {
	var (
		where string
		args  []any
	)
	if !r.From.IsZero() {
		where += fmt.Sprintf(" AND %s >= $%d", column, next)
		args = append(args, store.CeilMillisecond(r.From).UTC())
		next++
	}
	if !r.To.IsZero() {
		where += fmt.Sprintf(" AND %s < $%d", column, next)
		args = append(args, store.CeilMillisecond(r.To).UTC())
	}
	return where, args
}
