package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// OpenStoreDB opens (or creates) a store database file with the chatlensKV
// table, returning raw SQL access for seeding and inspecting rows.
func OpenStoreDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("Failed to open store database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS chatlensKV (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to create chatlensKV table: %v", err)
	}

	return db
}

// SeedKV inserts or replaces a raw key/value row. Keys carry the environment
// suffix exactly as the store writes them, e.g. "api-key-staging".
func SeedKV(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	if _, err := db.Exec("INSERT OR REPLACE INTO chatlensKV (key, value) VALUES (?, ?)", key, value); err != nil {
		t.Fatalf("Failed to seed key %s: %v", key, err)
	}
}

// QueryKV reads a raw row, reporting whether it exists.
func QueryKV(t *testing.T, db *sql.DB, key string) (string, bool) {
	t.Helper()
	var value string
	err := db.QueryRow("SELECT value FROM chatlensKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		t.Fatalf("Failed to query key %s: %v", key, err)
	}
	return value, true
}

// CreateStoreFixture creates a store database file pre-seeded with data for
// both environments and returns its path.
func CreateStoreFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "chatlens.db")
	db := OpenStoreDB(t, path)
	defer func() { _ = db.Close() }()

	SeedKV(t, db, "api-key-staging", "staging-key")
	SeedKV(t, db, "api-key-production", "production-key")
	SeedKV(t, db, "saved-chats-staging", `["conv-1"]`)
	return path
}
