package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Environments the dashboard can point at. Every persisted key is scoped to
// one of them.
const (
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Base keys for persisted state. Full keys take the form
// "<base>-<environment>" and are built only in storageKey so read and write
// sides can never drift.
const (
	KeyAPIKey            = "api-key"
	KeyUploadedData      = "uploaded-data"
	KeySavedChats        = "saved-chats"
	KeyChatNotes         = "chat-notes"
	KeyViewedChats       = "viewed-conversations"
	KeyThreadCache       = "thread-cache"
	KeyConversationCache = "conversation-cache"
)

// KVStore is the persistence surface the caches and annotation helpers
// write through. *Store implements it; tests substitute an in-memory fake.
type KVStore interface {
	Get(baseKey string) (string, bool, error)
	Set(baseKey, value string) error
	Delete(baseKey string) error
}

// Store persists dashboard state in a single sqlite key-value table,
// namespaced by environment so staging and production data never mix. An
// optional byte quota models the bounded persistent storage of the hosting
// environment; writes that would exceed it fail with *QuotaError.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	env      string
	maxBytes int64
}

// ValidEnvironment reports whether env names a known environment.
func ValidEnvironment(env string) bool {
	return env == EnvStaging || env == EnvProduction
}

// OpenStore opens (creating if needed) the store database at path, scoped to
// the given environment.
func OpenStore(path, env string) (*Store, error) {
	if !ValidEnvironment(env) {
		return nil, fmt.Errorf("unknown environment %q (expected %s or %s)", env, EnvStaging, EnvProduction)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Key: path, Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, &StorageError{Key: path, Op: "open", Err: err}
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, &StorageError{Key: path, Op: "open", Err: err}
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS chatlensKV (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, &StorageError{Key: path, Op: "open", Err: err}
	}

	LogDebug("Store opened at %s (environment: %s)", path, env)
	return &Store{db: db, env: env}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Environment returns the active namespace.
func (s *Store) Environment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

// SwitchEnvironment swaps the active namespace. All subsequent reads and
// writes see only the new environment's keys.
func (s *Store) SwitchEnvironment(env string) error {
	if !ValidEnvironment(env) {
		return fmt.Errorf("unknown environment %q (expected %s or %s)", env, EnvStaging, EnvProduction)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = env
	return nil
}

// SetQuota bounds the total serialized size of the store. Zero disables the
// quota.
func (s *Store) SetQuota(maxBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBytes = maxBytes
}

func (s *Store) storageKey(baseKey string) string {
	return baseKey + "-" + s.env
}

// Get reads the value stored under the environment-scoped key.
func (s *Store) Get(baseKey string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.storageKey(baseKey)
	var value string
	err := s.db.QueryRow("SELECT value FROM chatlensKV WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StorageError{Key: key, Op: "get", Err: err}
	}
	return value, true, nil
}

// Set writes the value under the environment-scoped key, enforcing the byte
// quota when one is configured.
func (s *Store) Set(baseKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.storageKey(baseKey)
	if s.maxBytes > 0 {
		total, err := s.totalBytesLocked()
		if err != nil {
			return &StorageError{Key: key, Op: "set", Err: err}
		}
		var existing int64
		if err := s.db.QueryRow("SELECT LENGTH(value) FROM chatlensKV WHERE key = ?", key).Scan(&existing); err != nil && err != sql.ErrNoRows {
			return &StorageError{Key: key, Op: "set", Err: err}
		}
		if total-existing+int64(len(value)) > s.maxBytes {
			return &QuotaError{Key: key, Size: int64(len(value))}
		}
	}

	_, err := s.db.Exec(
		"INSERT INTO chatlensKV (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return &StorageError{Key: key, Op: "set", Err: err}
	}
	return nil
}

// Delete removes the environment-scoped key. Deleting a missing key is not
// an error.
func (s *Store) Delete(baseKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.storageKey(baseKey)
	if _, err := s.db.Exec("DELETE FROM chatlensKV WHERE key = ?", key); err != nil {
		return &StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

// TotalBytes returns the serialized size of all values across environments.
// The quota models the host's storage budget, which is shared.
func (s *Store) TotalBytes() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytesLocked()
}

func (s *Store) totalBytesLocked() (int64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRow("SELECT SUM(LENGTH(value)) FROM chatlensKV").Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// Keys lists the base keys present in the active environment.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix := "-" + s.env
	rows, err := s.db.Query("SELECT key FROM chatlensKV WHERE key LIKE '%' || ?", suffix)
	if err != nil {
		return nil, &StorageError{Key: suffix, Op: "get", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, &StorageError{Key: suffix, Op: "get", Err: err}
		}
		keys = append(keys, key[:len(key)-len(suffix)])
	}
	return keys, rows.Err()
}
