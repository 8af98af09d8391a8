package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by single-row reads when nothing matches.
var ErrNotFound = errors.New("not found")

// MemoryPath opens a private in-memory ledger. It lives as long as the
// Store; nothing is written to disk.
const MemoryPath = ":memory:"

// migration upgrades a ledger created by an older schema.sql to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order for every ledger whose user_version is below
// their version. Fresh ledgers already have everything from schema.sql,
// so every statement must be idempotent.
var migrations = []migration{
	{
		version: 1,
		name:    "lookup indexes",
		stmt: `CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner);
CREATE INDEX IF NOT EXISTS idx_entry_effects_address ON entry_effects(address);`,
	},
}

// schemaVersion is the user_version of a fully migrated ledger.
var schemaVersion = migrations[len(migrations)-1].version

// Store holds the account table and the hash-chained entry log of one
// ledger. The engine is its only writer; reads may come from anywhere.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger database at path (MemoryPath for a
// throwaway ledger) and brings its schema up to date. Opening an existing
// ledger never rewrites entries or accounts.
//
// File-backed ledgers run in WAL mode with NORMAL sync, a 5s busy timeout
// and foreign keys on.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and each connection to
	// ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect ledger %s: %w", path, err)
	}
	if err := configure(db, path == MemoryPath); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database. An in-memory ledger is discarded.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func configure(db *sql.DB, memory bool) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// migrate applies schema.sql and then every pending migration, recording
// progress in user_version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	if current < schemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// pragma reads a single pragma value.
func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}
