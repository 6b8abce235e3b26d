package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverModernc is the pure-Go sqlite driver and the default.
	DriverModernc = "sqlite"
	// DriverCGO is the cgo sqlite driver.
	DriverCGO = "sqlite3"

	schemaVersion = 1
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_keys (
	key TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS database_version (
	db_version INTEGER NOT NULL
);
`

// SQL keeps records in a single sqlite database file.
type SQL struct {
	db *sqlx.DB
}

// OpenSQL opens (creating when needed) the database at path with driver.
func OpenSQL(driver, path string) (*SQL, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	db, err := sqlx.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("storage error opening %s: %w", path, err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQL{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("storage error creating schema: %w", err)
	}
	var version int
	err := s.db.Get(&version, "SELECT db_version FROM database_version LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.Exec("INSERT INTO database_version (db_version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("storage error writing schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage error reading schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("storage error: database version %d is newer than supported %d", version, schemaVersion)
	}
	return nil
}

func (s *SQL) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM kv ORDER BY key"); err != nil {
		return nil, fmt.Errorf("storage error listing keys: %w", err)
	}
	return keys, nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage error reading %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQL) Update(ctx context.Context, key string, value []byte) error {
	var err error
	if value == nil {
		_, err = s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	} else {
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value)
	}
	if err != nil {
		return fmt.Errorf("storage error writing %s: %w", key, err)
	}
	return nil
}

func (s *SQL) SetKeysForSync(ctx context.Context, keys []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage error starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_keys"); err != nil {
		return fmt.Errorf("storage error clearing sync keys: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO sync_keys (key) VALUES (?)", k); err != nil {
			return fmt.Errorf("storage error writing sync key %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage error committing sync keys: %w", err)
	}
	return nil
}

// SyncKeys returns the keys currently exposed to replication.
func (s *SQL) SyncKeys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM sync_keys ORDER BY key"); err != nil {
		return nil, fmt.Errorf("storage error reading sync keys: %w", err)
	}
	return keys, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}
