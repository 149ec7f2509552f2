package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Keystore is a small SQLite-backed key/value store for opaque blobs.
// The vault keeps encrypted credential material here; plaintext never
// touches this layer.
type Keystore struct {
	db *sql.DB
}

// NewKeystore opens (or creates) the keystore at path with WAL mode enabled.
func NewKeystore(path string) (*Keystore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS keystore (
			name TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create keystore table: %w", err)
	}

	return &Keystore{db: db}, nil
}

// Put stores a blob under name, overwriting any prior value.
func (k *Keystore) Put(ctx context.Context, name string, value []byte) error {
	_, err := k.db.ExecContext(ctx,
		"INSERT INTO keystore (name, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		name, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", name, err)
	}
	return nil
}

// Get retrieves a blob by name. Absence is a normal state: (nil, nil).
func (k *Keystore) Get(ctx context.Context, name string) ([]byte, error) {
	var value []byte
	err := k.db.QueryRowContext(ctx, "SELECT value FROM keystore WHERE name = ?", name).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", name, err)
	}
	return value, nil
}

// Delete removes a blob; no-op if absent.
func (k *Keystore) Delete(ctx context.Context, name string) error {
	_, err := k.db.ExecContext(ctx, "DELETE FROM keystore WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Close closes the database connection.
func (k *Keystore) Close() error {
	return k.db.Close()
}
