package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/slok/convq/internal/storage/sqlite/migrations"
)

func TestMigratorUpDown(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db})
	require.NoError(t, err)

	v, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	require.NoError(t, m.Up(ctx))
	// Applying twice is a no-op.
	require.NoError(t, m.Up(ctx))

	v, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	_, err = db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES ('a', x'00', 0)`)
	require.NoError(t, err)

	require.NoError(t, m.Down(ctx))
	_, err = db.ExecContext(ctx, `SELECT count(*) FROM kv`)
	assert.Error(t, err)
}

func TestMigratorRequiresDB(t *testing.T) {
	_, err := migrations.NewMigrator(migrations.MigratorConfig{})
	assert.Error(t, err)
}
