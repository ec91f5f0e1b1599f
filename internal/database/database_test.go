package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerius-app/aerius/internal/config"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "aerius.db?_pragma=busy_timeout(5000)", sqliteDSN("aerius.db"))
	assert.Equal(t, "aerius.db?mode=rwc&_pragma=busy_timeout(5000)", sqliteDSN("aerius.db?mode=rwc"))
	assert.Equal(t, "aerius.db?_pragma=busy_timeout(100)", sqliteDSN("aerius.db?_pragma=busy_timeout(100)"))
}

func TestConnectSQLiteSerializesWriters(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{
		Type:         "sqlite",
		DSN:          filepath.Join(t.TempDir(), "aerius.db"),
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	var timeout int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 5000, timeout)

	require.NoError(t, RunMigrations(db, "sqlite"))
}

func TestConnectRejectsUnknownType(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Type: "mysql"})
	assert.Error(t, err)
}
