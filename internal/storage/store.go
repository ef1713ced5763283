package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SettingsStore persists string-keyed settings such as the API credential.
// Get returns "" when the key has never been written or was deleted.
type SettingsStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// SQLiteStore implements SettingsStore using SQLite. When an encryption key is
// configured, values are sealed with AES-GCM before they hit the database.
type SQLiteStore struct {
	db     *sql.DB
	sealer *rowSealer
	mu     sync.RWMutex
}

// NewSQLiteStore opens (or creates) the settings database at dbPath.
// encryptionKey may be nil, in which case values are stored in plain text.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	var sealer *rowSealer
	if encryptionKey != nil {
		var err error
		if sealer, err = newRowSealer(encryptionKey); err != nil {
			return nil, err
		}
	}

	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		sealer: sealer,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// The file exists now; keep the credential readable by the owner only.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dbPath", dbPath).Msg("failed to restrict settings database permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		encrypted INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}

// Get retrieves a setting. Returns "", nil if the key doesn't exist.
func (s *SQLiteStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	var encrypted bool
	err := s.db.QueryRow(
		"SELECT value, encrypted FROM settings WHERE key = ?",
		key,
	).Scan(&value, &encrypted)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query setting %q: %w", key, err)
	}

	if !encrypted {
		return value, nil
	}
	if s.sealer == nil {
		return "", fmt.Errorf("setting %q is encrypted but no store key is configured", key)
	}

	plaintext, err := s.sealer.open(key, value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt setting %q: %w", key, err)
	}
	return plaintext, nil
}

// Set stores or replaces a setting.
func (s *SQLiteStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := value
	encrypted := false
	if s.sealer != nil {
		sealed, err := s.sealer.seal(key, value)
		if err != nil {
			return fmt.Errorf("failed to encrypt setting %q: %w", key, err)
		}
		stored = sealed
		encrypted = true
	}

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = excluded.updated_at
	`, key, stored, encrypted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, err)
	}

	return nil
}

// Delete removes a setting. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
