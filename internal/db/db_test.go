package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/Biopass/server/internal/db"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", fmt.Sprintf(
		"file:db_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name()))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx, conn))
	require.NoError(t, db.Migrate(ctx, conn))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	for _, table := range []string{"persons", "attendance_events"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestSeedDev_InsertsOnce(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn))

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{}))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{}))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openMemDB(t)
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn))

	w := db.NewWorker(conn)
	t.Cleanup(w.Close)

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO persons(person_id, name, registration_code, phone, email, biometric_key, enrolled_at_ms)
VALUES ('p1', 'A', 'REG1', '+1555', 'a@example.edu', 1, 0)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openMemDB(t)
	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, db.ErrWorkerClosed)
}
