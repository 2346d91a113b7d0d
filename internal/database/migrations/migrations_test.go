package migrations

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"ms-registration/internal/database/pgtest"
	"ms-registration/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSourceVersions(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.ErrorIs(t, err, os.ErrNotExist)

	up, name, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_registrations", name)

	body, err := io.ReadAll(up)
	require.NoError(t, err)
	assert.Contains(t, string(body), "uq_registrations_event_seat_row")
}

func TestRunnerUpAndDown(t *testing.T) {
	bunDB := pgtest.Start(t)
	ctx := context.Background()

	runner := NewRunner(bunDB, logger.NewWriterLogger(io.Discard))
	require.NoError(t, runner.RunMigrations())
	// Running again is a no-op.
	require.NoError(t, runner.RunMigrations())

	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	var indexes int
	err = bunDB.NewRaw(`SELECT count(*) FROM pg_indexes WHERE tablename = 'registrations' AND indexname LIKE 'uq_%'`).Scan(ctx, &indexes)
	require.NoError(t, err)
	assert.Equal(t, 4, indexes)

	require.NoError(t, runner.MigrateTo(1))
	var claimsTable sql.NullString
	err = bunDB.NewRaw(`SELECT to_regclass('public.seat_claims')::text`).Scan(ctx, &claimsTable)
	require.NoError(t, err)
	assert.False(t, claimsTable.Valid)

	require.NoError(t, runner.MigrateDown())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, runner.Close())
	assert.NoError(t, bunDB.PingContext(ctx))
}
