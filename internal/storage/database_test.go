package storage

import (
	"testing"
	"time"

	"planadmin/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open("sqlite3", memoryConfig())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, "sqlite3"))
	require.NoError(t, Migrate(db, "sqlite"))

	for _, table := range []string{"users", "user_permissions", "user_tokens", "preferences", "plans", "web_sessions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestPreferencesCascadeOnUserDelete(t *testing.T) {
	db, err := Open("sqlite3", memoryConfig())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db, "sqlite3"))

	now := time.Now().UTC()
	res, err := db.Exec(`INSERT INTO users (username, password_hash, created_at) VALUES ('alice', '', ?)`, now)
	require.NoError(t, err)
	userID, err := res.LastInsertId()
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO preferences (user_id, last_modified) VALUES (?, ?)`, userID, now)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM users WHERE id = ?`, userID)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM preferences`).Scan(&count))
	assert.Zero(t, count)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{Databases: map[string]config.DatabaseConfig{"postgres": {}}}
	_, err := Open("postgres", cfg)
	assert.Error(t, err)

	_, err = Open("mysql", memoryConfig())
	assert.Error(t, err)

	assert.Error(t, Migrate(nil, "postgres"))
}
