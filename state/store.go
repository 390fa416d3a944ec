// Package state is the durable property store backing machine records.
//
// Each machine record is a set of named slots in a single SQLite file.
// Writes go through immediately (one UPSERT per Set), so a crash after a
// Set never loses the update and a crash before it never exposes it.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store holds persisted machine records keyed by (machine, slot name).
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS machine_attrs (
	machine TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (machine, name)
)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize store schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read returns the raw stored value for a slot. The second return is
// false when the slot is absent.
func (s *Store) Read(machine, name string) (string, bool, error) {
	row := s.db.QueryRow(
		`SELECT value FROM machine_attrs WHERE machine = ? AND name = ?`,
		machine, name,
	)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read attr %s/%s: %w", machine, name, err)
	}
	return v, true, nil
}

// Write stores the raw value for a slot, durably, before returning.
func (s *Store) Write(machine, name, value string) error {
	const upsert = `
INSERT INTO machine_attrs (machine, name, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(machine, name) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at`

	if _, err := s.db.Exec(upsert, machine, name, value,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write attr %s/%s: %w", machine, name, err)
	}
	return nil
}

// Clear removes a slot. Clearing an absent slot is not an error.
func (s *Store) Clear(machine, name string) error {
	if _, err := s.db.Exec(
		`DELETE FROM machine_attrs WHERE machine = ? AND name = ?`,
		machine, name,
	); err != nil {
		return fmt.Errorf("clear attr %s/%s: %w", machine, name, err)
	}
	return nil
}

// Forget removes every slot of a machine record.
func (s *Store) Forget(machine string) error {
	if _, err := s.db.Exec(
		`DELETE FROM machine_attrs WHERE machine = ?`, machine,
	); err != nil {
		return fmt.Errorf("forget machine %s: %w", machine, err)
	}
	return nil
}
