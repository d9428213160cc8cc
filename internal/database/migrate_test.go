package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	require.NoError(t, RunMigrations(dbPath))
	// Re-running is a no-op, not an error.
	require.NoError(t, RunMigrations(dbPath))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='expenses'`).Scan(&name)
	require.NoError(t, err)
	require.Equal(t, "expenses", name)
}

func TestSchemaConstraints(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "constraints.db")
	require.NoError(t, RunMigrations(dbPath))
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Negative amounts are rejected at the schema level.
	_, err = db.Exec(`INSERT INTO expenses(id, date, amount, description) VALUES('x', '2026-08-01', -5, 'bad')`)
	require.Error(t, err)

	// Empty descriptions too.
	_, err = db.Exec(`INSERT INTO expenses(id, date, amount, description) VALUES('y', '2026-08-01', 5, '')`)
	require.Error(t, err)
}
