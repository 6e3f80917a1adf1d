// Package sqlitestore persists the session slots in an SQLite database using
// the pure Go modernc.org/sqlite driver.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_slots (
	scope      TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (scope, name)
)`

// SlotStore implements session.SlotStore with one row per slot in the
// session_slots table. Both rows are written and deleted in one transaction.
type SlotStore struct {
	db    *sql.DB
	scope string
}

// Open opens (creating if needed) the database at path and prepares the schema.
func Open(ctx context.Context, path, scope string) (*SlotStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if scope == "" {
		scope = "default"
	}
	return &SlotStore{db: db, scope: scope}, nil
}

// Load reads both slot rows for the scope.
func (s *SlotStore) Load(ctx context.Context) (session.Slots, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, value FROM session_slots WHERE scope = ?", s.scope)
	if err != nil {
		return session.Slots{}, fmt.Errorf("query slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var slots session.Slots
	for rows.Next() {
		var (
			name  string
			value []byte
		)
		if err := rows.Scan(&name, &value); err != nil {
			return session.Slots{}, fmt.Errorf("scan slot: %w", err)
		}
		switch name {
		case session.SlotCredential:
			slots.Credential = string(value)
		case session.SlotPrincipal:
			slots.Principal = value
		}
	}
	if err := rows.Err(); err != nil {
		return session.Slots{}, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

// Save upserts both slot rows in one transaction.
func (s *SlotStore) Save(ctx context.Context, slots session.Slots) error {
	if !slots.Complete() {
		return session.ErrIncompleteSlots
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		const upsert = `INSERT INTO session_slots (scope, name, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(scope, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
		if _, err := tx.ExecContext(ctx, upsert, s.scope, session.SlotCredential, []byte(slots.Credential)); err != nil {
			return fmt.Errorf("write credential slot: %w", err)
		}
		if _, err := tx.ExecContext(ctx, upsert, s.scope, session.SlotPrincipal, slots.Principal); err != nil {
			return fmt.Errorf("write principal slot: %w", err)
		}
		return nil
	})
}

// Clear deletes both slot rows for the scope.
func (s *SlotStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM session_slots WHERE scope = ?", s.scope); err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}
		return nil
	})
}

// Close closes the database.
func (s *SlotStore) Close() error {
	return s.db.Close()
}

func (s *SlotStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Compile-time interface verification.
var _ session.SlotStore = (*SlotStore)(nil)
