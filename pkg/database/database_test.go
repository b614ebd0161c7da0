package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"file:data/app.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate",
		DSN("data/app.db"))
	assert.Equal(t,
		"file:t1?mode=memory&cache=shared&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate",
		DSN("file:t1?mode=memory&cache=shared"))
}

func TestRunMigrations(t *testing.T) {
	db, err := New(Config{Path: "file:migrations_test?mode=memory&cache=shared", MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.RunMigrations())
	// second run is a no-op
	require.NoError(t, db.RunMigrations())

	var currency string
	require.NoError(t, db.QueryRow("SELECT base_currency FROM company WHERE id = 'company-1'").Scan(&currency))
	assert.Equal(t, "USD", currency)

	for _, table := range []string{"users", "expenses", "approval_entries"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}
